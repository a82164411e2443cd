// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/lib/binhash"
)

func TestParseManifest(t *testing.T) {
	manifest, err := ParseManifest([]byte(`{
		// RAM disk
		"image": "memblk",
		"kind": "block_device",
		"mmio": {"start": 4096, "end": 8192},
		"description": "scratch disk",
	}`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if manifest.Image != "memblk" || manifest.Kind != domain.KindBlockDevice {
		t.Errorf("manifest = %+v", manifest)
	}
	args := manifest.Args()
	if args.MMIO == nil || args.MMIO.Len() != 4096 {
		t.Errorf("Args().MMIO = %v", args.MMIO)
	}

	numeric, err := ParseManifest([]byte(`{"image": "fifo", "kind": "18"}`))
	if err != nil || numeric.Kind != domain.KindScheduler {
		t.Errorf("numeric kind = %v, %v", numeric.Kind, err)
	}
}

func TestParseManifestRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  `{"image": "memblk", "kind": "block_device", "mmoi": {}}`,
		"no image":       `{"kind": "block_device"}`,
		"unknown kind":   `{"image": "memblk", "kind": "floppy"}`,
		"no kind":        `{"image": "memblk"}`,
		"empty range":    `{"image": "memblk", "kind": "block_device", "mmio": {"start": 10, "end": 10}}`,
		"negative cache": `{"image": "cache", "kind": "cache_block_device", "cache_budget": -1}`,
		"not json":       `image = memblk`,
	}
	for name, input := range cases {
		if _, err := ParseManifest([]byte(input)); err == nil {
			t.Errorf("%s: ParseManifest accepted %s", name, input)
		}
	}
}

func TestReadManifestDigest(t *testing.T) {
	content := []byte(`{"image": "fifo", "kind": "scheduler"}`)
	path := filepath.Join(t.TempDir(), "sched.jsonc")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	manifest, digest, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.Image != "fifo" {
		t.Errorf("Image = %q", manifest.Image)
	}
	if digest != binhash.HashBytes(content) {
		t.Errorf("digest = %s, want the digest of the file bytes", digest)
	}

	if _, _, err := ReadManifest(filepath.Join(t.TempDir(), "missing.jsonc")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadManifest(missing) error = %v", err)
	}
}

func TestIsManifestPath(t *testing.T) {
	for source, want := range map[string]bool{
		"memblk":             false,
		"fifo":               false,
		"blk.jsonc":          true,
		"blk.json":           true,
		"manifests/blk":      true,
		"/etc/partition/blk": true,
	} {
		if got := IsManifestPath(source); got != want {
			t.Errorf("IsManifestPath(%q) = %v, want %v", source, got, want)
		}
	}
}

func nopEntry(env domain.Env) (domain.Basic, error) {
	return &domain.Base{ID: env.ID}, nil
}

func TestCatalog(t *testing.T) {
	catalog, err := NewCatalog(
		Image{Name: "zero", Kind: domain.KindEmptyDevice, Entry: nopEntry},
		Image{Name: "fifo", Kind: domain.KindScheduler, Entry: nopEntry},
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if image, ok := catalog.Lookup("fifo"); !ok || image.Kind != domain.KindScheduler {
		t.Errorf("Lookup(fifo) = %+v, %v", image, ok)
	}
	if _, ok := catalog.Lookup("memblk"); ok {
		t.Error("Lookup found an image that was never added")
	}
	images := catalog.Images()
	if len(images) != 2 || images[0].Name != "fifo" || images[1].Name != "zero" {
		t.Errorf("Images() = %+v", images)
	}

	if err := catalog.Add(Image{Name: "fifo", Kind: domain.KindScheduler, Entry: nopEntry}); !errors.Is(err, ErrImageExists) {
		t.Errorf("duplicate Add error = %v", err)
	}
	for _, bad := range []Image{
		{Kind: domain.KindLog, Entry: nopEntry},
		{Name: "x", Entry: nopEntry},
		{Name: "x", Kind: domain.KindLog},
	} {
		if err := catalog.Add(bad); err == nil || errors.Is(err, ErrImageExists) {
			t.Errorf("Add(%+v) error = %v", bad, err)
		}
	}
	if _, err := NewCatalog(Image{Name: "a", Kind: domain.KindLog, Entry: nopEntry}, Image{Name: "a", Kind: domain.KindLog, Entry: nopEntry}); err == nil || !strings.Contains(err.Error(), `"a"`) {
		t.Errorf("NewCatalog with duplicates error = %v", err)
	}
}
