// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/lib/binhash"
)

// Manifest describes how to instantiate a domain. Manifests are
// authored as JSONC: JSON with comments and trailing commas.
//
//	{
//	  // RAM disk used by the shadow block tests.
//	  "image": "memblk",
//	  "kind": "block_device",
//	  "mmio": {"start": 268435456, "end": 268439552},
//	}
type Manifest struct {
	// Image names the catalog image whose entry builds the domain.
	Image string `json:"image"`

	// Kind is the kind the domain is registered as. It must match the
	// image's kind.
	Kind domain.Kind `json:"kind"`

	MMIO        *domain.Range `json:"mmio,omitempty"`
	CacheBudget int           `json:"cache_budget,omitempty"`
	Backend     string        `json:"backend,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Args returns the entry arguments the manifest carries.
func (m Manifest) Args() domain.Args {
	return domain.Args{MMIO: m.MMIO, CacheBudget: m.CacheBudget, Backend: m.Backend}
}

// Validate checks the manifest's fields.
func (m Manifest) Validate() error {
	if m.Image == "" {
		return fmt.Errorf("manifest has no image")
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("manifest for image %q has no valid kind", m.Image)
	}
	if m.MMIO != nil {
		if err := m.MMIO.Validate(); err != nil {
			return fmt.Errorf("manifest for image %q: %w", m.Image, err)
		}
	}
	if m.CacheBudget < 0 {
		return fmt.Errorf("manifest for image %q: negative cache budget %d", m.Image, m.CacheBudget)
	}
	return nil
}

// ParseManifest decodes and validates a JSONC manifest. Unknown fields
// are rejected so a typo cannot silently drop an argument.
func ParseManifest(data []byte) (Manifest, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var manifest Manifest
	if err := decoder.Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// ReadManifest reads and parses the manifest at path and returns it
// with the digest of the file's bytes.
func ReadManifest(path string) (Manifest, binhash.Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, binhash.Digest{}, fmt.Errorf("reading %s: %w", path, err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, binhash.Digest{}, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, binhash.HashBytes(data), nil
}

// IsManifestPath reports whether source names a manifest file rather
// than a catalog image.
func IsManifestPath(source string) bool {
	extension := filepath.Ext(source)
	return extension == ".jsonc" || extension == ".json" || strings.ContainsRune(source, filepath.Separator)
}
