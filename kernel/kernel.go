// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/partition/continuation"
	"github.com/bureau-foundation/partition/crash"
	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/domains/fifo"
	"github.com/bureau-foundation/partition/domains/logdomain"
	"github.com/bureau-foundation/partition/domains/memblk"
	"github.com/bureau-foundation/partition/domains/nulldev"
	"github.com/bureau-foundation/partition/domains/shadowblk"
	"github.com/bureau-foundation/partition/journal"
	"github.com/bureau-foundation/partition/lib/clock"
	"github.com/bureau-foundation/partition/lib/config"
	"github.com/bureau-foundation/partition/lib/watchdog"
	"github.com/bureau-foundation/partition/loader"
	"github.com/bureau-foundation/partition/registry"
	"github.com/bureau-foundation/partition/sheap"
)

// DefaultRecentCrashes is how many crash records the kernel keeps in
// memory when Config.RecentCrashes is zero.
const DefaultRecentCrashes = 256

// Config configures a Kernel.
type Config struct {
	// HeapCapacity bounds the shared heap in bytes. Zero is unlimited.
	HeapCapacity int64

	// Harts is the number of harts. Values below one mean one.
	Harts int

	// ManifestDir resolves relative manifest paths.
	ManifestDir string

	// WatchdogPath records a hot update in progress. Empty disables
	// the watchdog.
	WatchdogPath string

	// WatchdogMaxAge defaults to loader.DefaultWatchdogMaxAge.
	WatchdogMaxAge time.Duration

	// JournalPath is the crash journal database. Empty disables the
	// journal.
	JournalPath string

	// JournalRetention is how long journal records are kept. Zero
	// keeps them forever.
	JournalRetention time.Duration

	// Boot lists the domains Boot registers, in order.
	Boot []config.BootDomain

	// Images are added to the built-in catalog.
	Images []loader.Image

	// RecentCrashes bounds the in-memory crash list. Defaults to
	// DefaultRecentCrashes.
	RecentCrashes int

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger receives kernel events. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// ConfigFrom translates the daemon configuration file into a kernel
// Config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	retention, err := cfg.JournalRetention()
	if err != nil {
		return Config{}, err
	}
	maxAge, err := cfg.WatchdogMaxAge()
	if err != nil {
		return Config{}, err
	}
	kernelConfig := Config{
		HeapCapacity:     cfg.Heap.Capacity,
		Harts:            cfg.Harts,
		ManifestDir:      cfg.Paths.Manifests,
		WatchdogPath:     cfg.Paths.Watchdog,
		WatchdogMaxAge:   maxAge,
		JournalRetention: retention,
		Boot:             cfg.Boot,
	}
	if !cfg.Journal.Disabled {
		kernelConfig.JournalPath = cfg.Paths.Journal
	}
	return kernelConfig, nil
}

// Builtins returns the images every kernel carries.
func Builtins() []loader.Image {
	return []loader.Image{
		{Name: memblk.ImageName, Kind: domain.KindBlockDevice, Entry: memblk.Entry, Description: "RAM-backed block device"},
		{Name: shadowblk.ImageName, Kind: domain.KindShadowBlock, Entry: shadowblk.Entry, Description: "block device restarting its backend once per failed read"},
		{Name: fifo.ImageName, Kind: domain.KindScheduler, Entry: fifo.Entry, Description: "first-in first-out scheduler"},
		{Name: nulldev.NullImage, Kind: domain.KindEmptyDevice, Entry: nulldev.NullEntry, Description: "discards writes, reads end of file"},
		{Name: nulldev.ZeroImage, Kind: domain.KindEmptyDevice, Entry: nulldev.ZeroEntry, Description: "discards writes, reads zeros"},
		{Name: logdomain.ImageName, Kind: domain.KindLog, Entry: logdomain.Entry, Description: "log sink writing to the kernel logger"},
	}
}

// Kernel owns the process-wide state: the shared heap, the hart table,
// the registry and the loader. Everything that needs them receives
// them from here.
type Kernel struct {
	heap     *sheap.Heap
	harts    *continuation.Harts
	registry *registry.Registry
	loader   *loader.Loader
	journal  *journal.Journal
	recent   *crash.Recorder

	boot      []config.BootDomain
	retention time.Duration
	startedAt time.Time

	clock  clock.Clock
	logger *slog.Logger
}

// New assembles a kernel. Call Close to release the journal.
func New(config Config) (*Kernel, error) {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	recentLimit := config.RecentCrashes
	if recentLimit <= 0 {
		recentLimit = DefaultRecentCrashes
	}

	catalog, err := loader.NewCatalog(append(Builtins(), config.Images...)...)
	if err != nil {
		return nil, fmt.Errorf("building image catalog: %w", err)
	}

	k := &Kernel{
		heap:      sheap.New(sheap.Config{Capacity: config.HeapCapacity, Logger: logger.With("component", "sheap")}),
		harts:     continuation.NewHarts(config.Harts),
		registry:  registry.New(registry.Config{Clock: clk, Logger: logger.With("component", "registry")}),
		recent:    &crash.Recorder{Limit: recentLimit},
		boot:      config.Boot,
		retention: config.JournalRetention,
		startedAt: clk.Now(),
		clock:     clk,
		logger:    logger,
	}

	reporters := crash.Multi{crash.LogReporter{Logger: logger.With("component", "crash")}, k.recent}
	if config.JournalPath != "" {
		k.journal, err = journal.Open(journal.Config{
			Path:   config.JournalPath,
			Clock:  clk,
			Logger: logger.With("component", "journal"),
		})
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, k.journal)
	}

	k.loader, err = loader.New(loader.Config{
		Heap:           k.heap,
		Registry:       k.registry,
		Catalog:        catalog,
		Reporter:       reporters,
		ManifestDir:    config.ManifestDir,
		WatchdogPath:   config.WatchdogPath,
		WatchdogMaxAge: config.WatchdogMaxAge,
		Clock:          clk,
		Logger:         logger.With("component", "loader"),
	})
	if err != nil {
		k.Close()
		return nil, err
	}
	return k, nil
}

// Close releases the journal.
func (k *Kernel) Close() error {
	if k.journal == nil {
		return nil
	}
	return k.journal.Close()
}

// Boot reports an interrupted hot update, prunes the journal, and
// registers the configured boot domains in order. It stops at the
// first domain that fails to register.
func (k *Kernel) Boot(ctx context.Context) error {
	if state, found, err := k.loader.CheckWatchdog(); err != nil {
		k.logger.Warn("update watchdog unreadable", "error", err)
	} else if found {
		k.reportInterruptedUpdate(ctx, state)
	}

	if _, err := k.PruneJournal(ctx); err != nil {
		k.logger.Warn("pruning crash journal", "error", err)
	}

	ctx = k.Context(ctx)
	for i, boot := range k.boot {
		name, err := k.loader.RegisterDomain(ctx, boot.Source, boot.Kind, boot.Name)
		if err != nil {
			return fmt.Errorf("boot domain %d (%s): %w", i, boot.Source, err)
		}
		k.logger.Info("boot domain registered", "name", name, "kind", boot.Kind, "source", boot.Source)
	}
	return nil
}

// reportInterruptedUpdate records an update that never finished as a
// crash of its target, so it shows up alongside domain crashes.
func (k *Kernel) reportInterruptedUpdate(ctx context.Context, state watchdog.State) {
	k.recordCrash(ctx, crash.Record{
		DomainID: state.FromID,
		Domain:   state.Target,
		Kind:     state.Kind,
		Method:   state.Operation,
		Message:  fmt.Sprintf("update to %q (id %d) was interrupted at %s", state.Replacement, state.ToID, state.Timestamp.Format(time.RFC3339)),
		Hart:     continuation.TransientHartID,
		Time:     k.clock.Now(),
	})
}

func (k *Kernel) recordCrash(ctx context.Context, record crash.Record) {
	k.recent.Report(ctx, record)
	if k.journal != nil {
		k.journal.Report(ctx, record)
	}
}

// Context binds the next hart, round robin, to ctx. Every request
// entering the kernel from outside runs on its own hart binding.
func (k *Kernel) Context(ctx context.Context) context.Context {
	if _, ok := continuation.FromContext(ctx); ok {
		return ctx
	}
	return continuation.WithHart(ctx, k.harts.Next())
}

// PruneJournal drops journal records older than the retention.
func (k *Kernel) PruneJournal(ctx context.Context) (int, error) {
	if k.journal == nil || k.retention <= 0 {
		return 0, nil
	}
	return k.journal.Prune(ctx, k.clock.Now().Add(-k.retention))
}

// RunMaintenance prunes the journal every interval until ctx is done.
func (k *Kernel) RunMaintenance(ctx context.Context, interval time.Duration) {
	if k.journal == nil || k.retention <= 0 || interval <= 0 {
		return
	}
	ticker := k.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := k.PruneJournal(ctx); err != nil && !errors.Is(err, context.Canceled) {
				k.logger.Warn("pruning crash journal", "error", err)
			}
		}
	}
}

// Heap returns the shared heap.
func (k *Kernel) Heap() *sheap.Heap { return k.heap }

// Harts returns the hart table.
func (k *Kernel) Harts() *continuation.Harts { return k.harts }

// Registry returns the domain registry.
func (k *Kernel) Registry() *registry.Registry { return k.registry }

// Loader returns the domain loader.
func (k *Kernel) Loader() *loader.Loader { return k.loader }

// Journal returns the crash journal, or nil when it is disabled.
func (k *Kernel) Journal() *journal.Journal { return k.journal }

// RecentCrashes returns the crashes kept in memory, oldest first.
func (k *Kernel) RecentCrashes() []crash.Record { return k.recent.Records() }

// CrashNotify returns a channel closed by the next crash report.
func (k *Kernel) CrashNotify() <-chan struct{} { return k.recent.Next() }

// Uptime returns how long the kernel has existed.
func (k *Kernel) Uptime() time.Duration { return k.clock.Now().Sub(k.startedAt) }
