// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logdomain is a Log domain that emits records through the
// kernel's structured logger. Messages arrive as byte vectors in
// shared memory; the domain takes ownership and frees each one once it
// has been written or filtered out.
package logdomain

import (
	"context"
	"log/slog"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
)

// ImageName is the catalog name for this domain.
const ImageName = "log"

// DefaultFilter is the filter in effect after Init.
const DefaultFilter = domain.FilterInfo

// Sink is the log domain.
type Sink struct {
	domain.Base

	logger  *slog.Logger
	filter  atomic.Uint32
	emitted atomic.Uint64
	dropped atomic.Uint64
}

// New returns a sink writing to logger.
func New(id uint64, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sink := &Sink{Base: domain.Base{ID: id}, logger: logger}
	sink.filter.Store(uint32(DefaultFilter))
	return sink
}

// Entry is the domain entry point.
func Entry(env domain.Env) (domain.Basic, error) {
	var logger *slog.Logger
	if env.Core != nil {
		logger = env.Core.Logger()
	}
	return New(env.ID, logger), nil
}

func (s *Sink) Init(context.Context) error {
	s.filter.Store(uint32(DefaultFilter))
	return nil
}

func (s *Sink) Log(ctx context.Context, level domain.Level, msg rref.RRefVec[byte]) error {
	if level < domain.LevelError || level > domain.LevelTrace {
		msg.Free()
		return domain.NewOpError("log", unix.EINVAL)
	}
	defer msg.Free()

	if !domain.LevelFilter(s.filter.Load()).Allows(level) {
		s.dropped.Add(1)
		return nil
	}
	text := msg.Slice()
	if !utf8.Valid(text) {
		s.logger.Log(ctx, level.SlogLevel(), "binary log record", "bytes", len(text))
	} else {
		s.logger.Log(ctx, level.SlogLevel(), string(text))
	}
	s.emitted.Add(1)
	return nil
}

func (s *Sink) SetMaxLevel(_ context.Context, filter domain.LevelFilter) error {
	if filter > domain.FilterTrace {
		return domain.NewOpError("set_max_level", unix.EINVAL)
	}
	s.filter.Store(uint32(filter))
	return nil
}

// Counts returns how many records were emitted and filtered out.
func (s *Sink) Counts() (emitted, dropped uint64) {
	return s.emitted.Load(), s.dropped.Load()
}
