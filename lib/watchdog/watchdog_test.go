// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleState(at time.Time) State {
	return State{
		Operation:   "update_domain",
		Target:      "sched",
		Replacement: "sched-v2",
		Kind:        "scheduler",
		FromID:      3,
		ToID:        9,
		Timestamp:   at,
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.watchdog")
	state := sampleState(time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC))
	if err := Write(path, state); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Target != state.Target || got.Replacement != state.Replacement ||
		got.FromID != 3 || got.ToID != 9 || got.Kind != "scheduler" {
		t.Errorf("Read = %+v, want %+v", got, state)
	}
	if !got.Timestamp.Equal(state.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, state.Timestamp)
	}
}

func TestWriteLeavesNoTemporaryFile(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "update.watchdog")
	if err := Write(path, sampleState(time.Now())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "update.watchdog" {
		t.Errorf("directory holds %v, want only the state file", entries)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteMissingParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "update.watchdog")
	if err := Write(path, sampleState(time.Now())); err == nil {
		t.Fatal("Write succeeded without a parent directory")
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "update.watchdog"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read(missing) error = %v, want os.ErrNotExist", err)
	}
}

func TestCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.watchdog")
	started := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)

	if _, found, err := Check(path, time.Hour, started); found || err != nil {
		t.Fatalf("Check(missing) = %v, %v", found, err)
	}

	if err := Write(path, sampleState(started)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	state, found, err := Check(path, time.Hour, started.Add(10*time.Minute))
	if err != nil || !found || state.Target != "sched" {
		t.Errorf("Check(recent) = %+v, %v, %v", state, found, err)
	}
	if _, found, err := Check(path, time.Hour, started.Add(2*time.Hour)); found || err != nil {
		t.Errorf("Check(stale) = %v, %v", found, err)
	}

	if err := os.WriteFile(path, []byte{0xff, 0xff}, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := Check(path, time.Hour, started); err == nil {
		t.Error("Check accepted a corrupt state file")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.watchdog")
	if err := Clear(path); err != nil {
		t.Errorf("Clear(missing): %v", err)
	}
	if err := Write(path, sampleState(time.Now())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("state file still present after Clear: %v", err)
	}
}
