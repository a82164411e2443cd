// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logdomain

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
	"github.com/bureau-foundation/partition/sheap"
)

func message(t *testing.T, heap *sheap.Heap, owner uint64, text string) rref.RRefVec[byte] {
	t.Helper()
	vec, err := rref.VecFromSlice(heap, owner, []byte(text))
	if err != nil {
		t.Fatalf("VecFromSlice: %v", err)
	}
	return vec
}

func TestLogFiltersAndFrees(t *testing.T) {
	ctx := context.Background()
	heap := sheap.New(sheap.Config{})
	var output bytes.Buffer
	sink := New(5, slog.New(slog.NewTextHandler(&output, &slog.HandlerOptions{Level: slog.LevelDebug - 4})))
	if err := sink.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := sink.Log(ctx, domain.LevelInfo, message(t, heap, 5, "disk attached")); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := sink.Log(ctx, domain.LevelDebug, message(t, heap, 5, "probing")); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if !strings.Contains(output.String(), "disk attached") || strings.Contains(output.String(), "probing") {
		t.Errorf("output = %q, want only the info record", output.String())
	}

	if err := sink.SetMaxLevel(ctx, domain.FilterTrace); err != nil {
		t.Fatalf("SetMaxLevel: %v", err)
	}
	if err := sink.Log(ctx, domain.LevelTrace, message(t, heap, 5, "irq 7")); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if !strings.Contains(output.String(), "irq 7") {
		t.Error("trace record filtered out under FilterTrace")
	}

	emitted, dropped := sink.Counts()
	if emitted != 2 || dropped != 1 {
		t.Errorf("Counts() = %d, %d, want 2, 1", emitted, dropped)
	}
	if heap.Stats().Allocations != 0 {
		t.Errorf("%d messages were not freed", heap.Stats().Allocations)
	}
}

func TestLogRejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	heap := sheap.New(sheap.Config{})
	sink := New(5, nil)

	if err := sink.Log(ctx, domain.Level(9), message(t, heap, 5, "x")); !errors.Is(err, unix.EINVAL) {
		t.Errorf("Log(bad level) error = %v", err)
	}
	if err := sink.SetMaxLevel(ctx, domain.LevelFilter(42)); !errors.Is(err, unix.EINVAL) {
		t.Errorf("SetMaxLevel(bad filter) error = %v", err)
	}
	if err := sink.SetMaxLevel(ctx, domain.LevelOff); err != nil {
		t.Fatalf("SetMaxLevel(off): %v", err)
	}
	if err := sink.Log(ctx, domain.LevelError, message(t, heap, 5, "x")); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if _, dropped := sink.Counts(); dropped != 1 {
		t.Errorf("record logged with the filter off")
	}
	if heap.Stats().Allocations != 0 {
		t.Errorf("%d messages were not freed", heap.Stats().Allocations)
	}
}
