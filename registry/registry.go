// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/lib/clock"
)

var (
	// ErrExists is returned by Register when the name is taken.
	ErrExists = errors.New("domain name already registered")

	// ErrNotFound is returned when no record has the given name.
	ErrNotFound = errors.New("domain not registered")

	// ErrKindMismatch is returned by Update when the replacement
	// handle is of a different kind than the record.
	ErrKindMismatch = errors.New("domain kind mismatch")

	// ErrNoReloader is returned by Reload before SetReloader.
	ErrNoReloader = errors.New("registry has no reloader")
)

// Record is one registry entry.
type Record struct {
	Name       string
	Kind       domain.Kind
	Handle     domain.Handle
	Created    time.Time
	Updated    time.Time
	Generation int
}

// ID returns the id of the domain currently behind the record.
func (r Record) ID() uint64 { return r.Handle.DomainID() }

// Active reports whether the current handle is active. The crash path
// flips this by deactivating the proxy behind the handle.
func (r Record) Active() bool { return r.Handle.IsActive() }

// ReloadFunc restarts the domain registered under name.
type ReloadFunc func(ctx context.Context, name string) error

// Config configures a Registry.
type Config struct {
	// Clock timestamps records. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives registration events. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Registry is the name-keyed table of domain handles.
type Registry struct {
	mu       sync.Mutex
	records  map[string]*Record
	counters map[string]int
	reloader ReloadFunc

	clock  clock.Clock
	logger *slog.Logger
}

// New creates an empty registry.
func New(config Config) *Registry {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		records:  make(map[string]*Record),
		counters: make(map[string]int),
		clock:    clk,
		logger:   logger,
	}
}

// Register inserts a new record. It fails with ErrExists if the name
// is already present.
func (r *Registry) Register(name string, handle domain.Handle) error {
	if !handle.Valid() {
		return fmt.Errorf("registering %q: %w", name, domain.ErrInvalidHandle)
	}
	if name == "" {
		return fmt.Errorf("registering %s: empty name", handle)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[name]; exists {
		return fmt.Errorf("registering %q: %w", name, ErrExists)
	}
	r.insertLocked(name, handle)
	return nil
}

// Attach picks identifier if that name is free, or identifier-N with
// the next free counter otherwise, builds the handle for that name and
// inserts it. This is the boot path, where several instances of a
// driver attach to devices found during probing. build runs with the
// registry locked and must not call into any domain; wrapping an
// instance in its proxy is fine.
func (r *Registry) Attach(identifier string, build func(name string) (domain.Handle, error)) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("attaching: empty identifier")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	name := identifier
	for {
		if _, exists := r.records[name]; !exists {
			break
		}
		r.counters[identifier]++
		name = fmt.Sprintf("%s-%d", identifier, r.counters[identifier])
	}
	handle, err := build(name)
	if err != nil {
		return "", fmt.Errorf("attaching %q: %w", name, err)
	}
	if !handle.Valid() {
		return "", fmt.Errorf("attaching %q: %w", name, domain.ErrInvalidHandle)
	}
	r.insertLocked(name, handle)
	return name, nil
}

func (r *Registry) insertLocked(name string, handle domain.Handle) {
	now := r.clock.Now()
	r.records[name] = &Record{
		Name:       name,
		Kind:       handle.Kind(),
		Handle:     handle,
		Created:    now,
		Updated:    now,
		Generation: 1,
	}
	r.logger.Info("domain registered",
		"name", name,
		"kind", handle.Kind(),
		"domain_id", handle.DomainID(),
	)
}

// Query returns the current handle for name.
func (r *Registry) Query(name string) (domain.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[name]
	if !ok {
		return domain.Handle{}, false
	}
	return record.Handle, true
}

// Lookup returns a copy of the record for name.
func (r *Registry) Lookup(name string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[name]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// Update replaces the handle behind an existing name. The new handle
// must be of the record's kind. Handles already obtained for the old
// implementation keep working.
func (r *Registry) Update(name string, handle domain.Handle) (previous domain.Handle, err error) {
	if !handle.Valid() {
		return domain.Handle{}, fmt.Errorf("updating %q: %w", name, domain.ErrInvalidHandle)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[name]
	if !ok {
		return domain.Handle{}, fmt.Errorf("updating %q: %w", name, ErrNotFound)
	}
	if record.Kind != handle.Kind() {
		return domain.Handle{}, fmt.Errorf("updating %q from %s to %s: %w",
			name, record.Kind, handle.Kind(), ErrKindMismatch)
	}
	previous = record.Handle
	record.Handle = handle
	record.Updated = r.clock.Now()
	record.Generation++
	r.logger.Info("domain updated",
		"name", name,
		"kind", record.Kind,
		"from_id", previous.DomainID(),
		"to_id", handle.DomainID(),
		"generation", record.Generation,
	)
	return previous, nil
}

// List returns copies of every record sorted by name.
func (r *Registry) List() []Record {
	r.mu.Lock()
	records := make([]Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, *record)
	}
	r.mu.Unlock()
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// SetReloader installs the function Reload delegates to.
func (r *Registry) SetReloader(reloader ReloadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloader = reloader
}

// Reload asks the reloader to restart the domain under name. The
// registry lock is released before the reloader runs.
func (r *Registry) Reload(ctx context.Context, name string) error {
	r.mu.Lock()
	reloader := r.reloader
	_, exists := r.records[name]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("reloading %q: %w", name, ErrNotFound)
	}
	if reloader == nil {
		return fmt.Errorf("reloading %q: %w", name, ErrNoReloader)
	}
	return reloader(ctx, name)
}
