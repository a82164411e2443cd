// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration shared by every partition
// package that puts bytes on a socket or on disk.
//
// Two formats are in use, split at the process boundary:
//
//   - CBOR for the management socket protocol and the update watchdog
//     file. Both sides are partition binaries.
//   - JSON (and JSONC) for what humans write or read: domain
//     manifests and CLI --json output.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same value always encodes to the same bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For sockets, use [NewEncoder] and [NewDecoder].
//
// # Struct tags
//
// A `cbor` tag marks a type that only ever travels as CBOR (the
// watchdog state, request envelopes). A `json` tag marks a type that
// travels as both: fxamacker/cbor falls back to `json` tags, so one tag
// names the field in both encodings. Management responses the CLI can
// print with --json use `json` tags. Never put both tags on one field.
package codec
