// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"fmt"
	"log/slog"
	"math"
)

// BlockSize is the size in bytes of one device block.
const BlockSize = 512

// Block is one device block. It is a restricted type and travels
// between domains inside an rref.RRef.
type Block [BlockSize]byte

// Range is a half-open memory-mapped I/O address range.
type Range struct {
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// Len returns the size of the range in bytes.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether addr lies in the range.
func (r Range) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// Validate rejects empty or inverted ranges.
func (r Range) Validate() error {
	if r.End <= r.Start {
		return fmt.Errorf("invalid range [%#x, %#x)", r.Start, r.End)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End)
}

// NoTask is the TID a scheduler returns from FetchTask when it has
// nothing runnable.
const NoTask = math.MaxUint64

// TaskState is the scheduling state of a task.
type TaskState uint8

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskWaiting
	TaskExited
)

// TaskInfo is the scheduling metadata the kernel hands to a Scheduler
// domain. It carries no pointers, so the scheduler can hold it across
// calls once ownership has moved to it.
type TaskInfo struct {
	TID      uint64
	PID      uint64
	Priority int32
	State    TaskState
	Runtime  int64
}

// Level is a log record severity as passed to a Log domain.
type Level uint8

const (
	LevelError Level = 1 + iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// LevelFilter caps which records a Log domain emits. LevelOff disables
// everything; otherwise a record passes when its Level is at most the
// filter.
type LevelFilter uint8

const (
	LevelOff LevelFilter = iota
	FilterError
	FilterWarn
	FilterInfo
	FilterDebug
	FilterTrace
)

// Allows reports whether records at level pass the filter.
func (f LevelFilter) Allows(level Level) bool {
	return f != LevelOff && uint8(level) <= uint8(f)
}

// SlogLevel maps a domain log level onto slog. Trace has no slog
// counterpart and is logged below Debug.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelDebug - 4
	}
}

// InputEvent is one event read from an input device.
type InputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// MAC is a hardware network address.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}
