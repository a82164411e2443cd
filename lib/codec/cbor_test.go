// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

type request struct {
	Action string `cbor:"action"`
	Name   string `cbor:"name,omitempty"`
	Kind   color  `cbor:"kind"`
}

type listing struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// color stands in for the text-marshaled enumerations.
type color uint8

func (c color) MarshalText() ([]byte, error) {
	return fmt.Appendf(nil, "color-%d", c), nil
}

func (c *color) UnmarshalText(text []byte) error {
	_, err := fmt.Sscanf(string(text), "color-%d", (*uint8)(c))
	return err
}

func TestRoundTrip(t *testing.T) {
	original := request{Action: "register_domain", Name: "blk-1", Kind: 2}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded request
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("decoded %+v, want %+v", decoded, original)
	}
}

func TestTextMarshalerTravelsAsString(t *testing.T) {
	data, err := Marshal(request{Action: "x", Kind: 7})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"color-7"`) {
		t.Errorf("diagnostic %s does not carry the kind as text", diagnostic)
	}
}

func TestDeterministic(t *testing.T) {
	value := map[string]any{"b": 1, "a": "two", "c": []int{3}}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding of the same map differed between calls")
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	data, err := Marshal(listing{Name: "sched", Active: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]any
	if err := Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if fields["name"] != "sched" || fields["active"] != true {
		t.Errorf("fields = %v, want json tag names", fields)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, name := range []string{"a", "b"} {
		if err := encoder.Encode(listing{Name: name}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	decoder := NewDecoder(&buffer)
	for _, want := range []string{"a", "b"} {
		var got listing
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Name != want {
			t.Errorf("decoded %q, want %q", got.Name, want)
		}
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var decoded request
	if err := Unmarshal([]byte{0xff, 0x00}, &decoded); err == nil {
		t.Error("Unmarshal accepted invalid CBOR")
	}
}
