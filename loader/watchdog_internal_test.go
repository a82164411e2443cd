// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/partition/registry"
	"github.com/bureau-foundation/partition/sheap"
)

func TestClearWatchdogLogsFailure(t *testing.T) {
	// A non-empty directory cannot be removed, so Clear fails.
	path := filepath.Join(t.TempDir(), "update.watchdog")
	if err := os.MkdirAll(filepath.Join(path, "occupied"), 0o755); err != nil {
		t.Fatalf("creating blocking directory: %v", err)
	}

	var logs bytes.Buffer
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	l, err := New(Config{
		Heap:         sheap.New(sheap.Config{}),
		Registry:     registry.New(registry.Config{}),
		Catalog:      catalog,
		WatchdogPath: path,
		Logger:       slog.New(slog.NewTextHandler(&logs, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.clearWatchdog()
	output := logs.String()
	if !strings.Contains(output, "clearing update watchdog") || !strings.Contains(output, "removing watchdog file") {
		t.Errorf("failed clear not logged; log output:\n%s", output)
	}
}
