// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crash

import "fmt"

// State is the lifecycle state of a domain instance behind a proxy.
type State uint8

const (
	// Active domains accept calls.
	Active State = iota
	// Inactive domains have crashed; every call fails with a crash
	// error until a restart succeeds.
	Inactive
	// Failed domains crashed and could not be restarted.
	Failed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = Active
	case "inactive":
		*s = Inactive
	case "failed":
		*s = Failed
	default:
		return fmt.Errorf("unknown domain state %q", text)
	}
	return nil
}
