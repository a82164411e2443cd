// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeebo/blake3"
)

func TestHashFileMatchesHashBytes(t *testing.T) {
	content := []byte(`{"image": "memblk", "kind": "block_device"}`)
	path := filepath.Join(t.TempDir(), "memblk.jsonc")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if want := HashBytes(content); got != want {
		t.Errorf("HashFile = %s, HashBytes = %s", got, want)
	}
}

func TestDigestIsKeyed(t *testing.T) {
	content := []byte("image")
	unkeyed := blake3.Sum256(content)
	if HashBytes(content) == Digest(unkeyed) {
		t.Error("image digest equals the unkeyed BLAKE3 digest")
	}
	if HashBytes(content) == HashBytes([]byte("image2")) {
		t.Error("different content produced the same digest")
	}
}

func TestHashFileNonexistent(t *testing.T) {
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("HashFile succeeded on a missing file")
	}
}

func TestHashFileLarge(t *testing.T) {
	content := make([]byte, 256*1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "large")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got != HashBytes(content) {
		t.Error("streamed digest differs from in-memory digest")
	}
}

func TestFormatParseDigest(t *testing.T) {
	digest := HashBytes([]byte("round trip"))
	formatted := FormatDigest(digest)
	if len(formatted) != 64 {
		t.Fatalf("FormatDigest length = %d, want 64", len(formatted))
	}
	parsed, err := ParseDigest(formatted)
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if parsed != digest {
		t.Errorf("ParseDigest(FormatDigest(d)) = %s, want %s", parsed, digest)
	}
	if digest.IsZero() || !(Digest{}).IsZero() {
		t.Error("IsZero misreports")
	}
}

func TestParseDigestErrors(t *testing.T) {
	for _, input := range []string{"", "zz", strings.Repeat("ab", 16), strings.Repeat("ab", 33)} {
		if _, err := ParseDigest(input); err == nil {
			t.Errorf("ParseDigest(%q) succeeded", input)
		}
	}
}
