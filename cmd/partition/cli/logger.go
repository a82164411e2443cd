// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger returns a logger writing to w: text when w is a terminal,
// JSON otherwise, so piped output matches the daemon's log format.
func NewLogger(w *os.File, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(w.Fd())) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// NewCommandLogger returns the stderr logger commands use.
func NewCommandLogger() *slog.Logger {
	return NewLogger(os.Stderr, slog.LevelInfo)
}
