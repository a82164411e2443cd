// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/partition/lib/codec"
)

// State describes an update in progress.
type State struct {
	// Operation names what was being done, e.g. "update_domain".
	Operation string `cbor:"operation"`

	// Target is the registry name whose implementation was being
	// replaced.
	Target string `cbor:"target"`

	// Replacement is the registry name of the new implementation.
	Replacement string `cbor:"replacement"`

	// Kind is the domain kind, by name.
	Kind string `cbor:"kind"`

	// FromID and ToID are the domain ids on either side of the swap.
	FromID uint64 `cbor:"from_id"`
	ToID   uint64 `cbor:"to_id"`

	// Timestamp is when the update started. Check uses it to discard
	// stale files.
	Timestamp time.Time `cbor:"timestamp"`
}

// Write atomically replaces the state file at path. The parent
// directory must exist. The file is created with mode 0600.
func Write(path string, state State) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding watchdog state: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary watchdog file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary watchdog file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary watchdog file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary watchdog file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming watchdog file into place: %w", err)
	}

	// Make the rename itself durable.
	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// Read decodes the state file at path. A missing file yields an error
// wrapping os.ErrNotExist.
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decoding watchdog file %s: %w", path, err)
	}
	return state, nil
}

// Check returns the state at path and true if the file exists and was
// written no more than maxAge before now. A missing or stale file
// returns false with no error; an unreadable one returns the error.
func Check(path string, maxAge time.Duration, now time.Time) (State, bool, error) {
	state, err := Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	if now.Sub(state.Timestamp) > maxAge {
		return State{}, false, nil
	}
	return state, true, nil
}

// Clear removes the state file. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing watchdog file: %w", err)
	}
	return nil
}
