// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/partition/crash"
	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/lib/binhash"
	"github.com/bureau-foundation/partition/lib/clock"
	"github.com/bureau-foundation/partition/lib/watchdog"
	"github.com/bureau-foundation/partition/proxy"
	"github.com/bureau-foundation/partition/registry"
	"github.com/bureau-foundation/partition/sheap"
)

var (
	// ErrKindMismatch is returned when the requested kind disagrees
	// with the image, the manifest, or a registry record.
	ErrKindMismatch = errors.New("domain kind mismatch")

	// ErrNotManaged is returned when a registry handle was not built
	// by a proxy and so cannot be restarted.
	ErrNotManaged = errors.New("domain is not behind a proxy")

	// ErrReplacementInactive is returned by UpdateDomain when the
	// replacement domain has crashed.
	ErrReplacementInactive = errors.New("replacement domain is not active")
)

// DefaultWatchdogMaxAge bounds how old an update watchdog file may be
// and still count as an interrupted update.
const DefaultWatchdogMaxAge = 10 * time.Minute

// Config configures a Loader. Heap, Registry and Catalog are required.
type Config struct {
	Heap     *sheap.Heap
	Registry *registry.Registry
	Catalog  *Catalog

	// Reporter receives every crash of every loaded domain. May be
	// nil.
	Reporter crash.Reporter

	// ManifestDir resolves relative manifest paths.
	ManifestDir string

	// WatchdogPath is where UpdateDomain records an update in
	// progress. Empty disables the watchdog.
	WatchdogPath string

	// WatchdogMaxAge defaults to DefaultWatchdogMaxAge.
	WatchdogMaxAge time.Duration

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger receives lifecycle events. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Domain describes one domain the loader instantiated.
type Domain struct {
	Name   string      `json:"name"`
	ID     uint64      `json:"id"`
	Kind   domain.Kind `json:"kind"`
	Image  string      `json:"image"`
	Source string      `json:"source"`
	Digest string      `json:"digest,omitempty"`
	Loaded time.Time   `json:"loaded"`
}

// Loader instantiates domains into the registry.
type Loader struct {
	heap     *sheap.Heap
	registry *registry.Registry
	catalog  *Catalog
	reporter crash.Reporter

	manifestDir    string
	watchdogPath   string
	watchdogMaxAge time.Duration

	// nextID hands out domain ids. Zero is the kernel.
	nextID atomic.Uint64

	// mu serializes management operations with each other. It is not
	// taken by ReloadDomain, which domains call from inside their own
	// calls.
	mu      sync.Mutex
	domains map[string]Domain

	clock  clock.Clock
	logger *slog.Logger
}

// New creates a loader and installs it as the registry's reloader.
func New(config Config) (*Loader, error) {
	if config.Heap == nil || config.Registry == nil || config.Catalog == nil {
		return nil, fmt.Errorf("loader: Heap, Registry and Catalog are required")
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxAge := config.WatchdogMaxAge
	if maxAge <= 0 {
		maxAge = DefaultWatchdogMaxAge
	}

	l := &Loader{
		heap:           config.Heap,
		registry:       config.Registry,
		catalog:        config.Catalog,
		reporter:       config.Reporter,
		manifestDir:    config.ManifestDir,
		watchdogPath:   config.WatchdogPath,
		watchdogMaxAge: maxAge,
		domains:        make(map[string]Domain),
		clock:          clk,
		logger:         logger,
	}
	config.Registry.SetReloader(l.ReloadDomain)
	return l, nil
}

// source is a resolved registration source.
type source struct {
	manifest Manifest
	digest   binhash.Digest
	origin   string
}

func (l *Loader) resolve(origin string, kind domain.Kind) (source, error) {
	if !IsManifestPath(origin) {
		return source{manifest: Manifest{Image: origin, Kind: kind}, origin: origin}, nil
	}
	path := origin
	if !filepath.IsAbs(path) && l.manifestDir != "" {
		path = filepath.Join(l.manifestDir, path)
	}
	manifest, digest, err := ReadManifest(path)
	if err != nil {
		return source{}, err
	}
	return source{manifest: manifest, digest: digest, origin: path}, nil
}

// RegisterDomain loads the domain described by origin (a manifest path
// or a catalog image name), registers it as kind under name and
// returns the name used. An empty name attaches under the image name,
// suffixed -N if taken.
func (l *Loader) RegisterDomain(ctx context.Context, origin string, kind domain.Kind, name string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("registering %q: undefined kind %d", origin, uint8(kind))
	}
	resolved, err := l.resolve(origin, kind)
	if err != nil {
		return "", fmt.Errorf("registering %q: %w", origin, err)
	}
	manifest := resolved.manifest
	if manifest.Kind != kind {
		return "", fmt.Errorf("registering %q as %s: manifest declares %s: %w", origin, kind, manifest.Kind, ErrKindMismatch)
	}
	image, ok := l.catalog.Lookup(manifest.Image)
	if !ok {
		return "", fmt.Errorf("registering %q: %w: %q", origin, ErrUnknownImage, manifest.Image)
	}
	if image.Kind != kind {
		return "", fmt.Errorf("registering image %q as %s: image is %s: %w", image.Name, kind, image.Kind, ErrKindMismatch)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if name != "" {
		if _, exists := l.registry.Query(name); exists {
			return "", fmt.Errorf("registering %q: %w", name, registry.ErrExists)
		}
	}

	id := l.nextID.Add(1)
	args := manifest.Args()
	if name != "" {
		handle, err := l.wrap(image, id, name, args)
		if err != nil {
			l.heap.FreeDomain(id)
			return "", fmt.Errorf("registering %q: %w", name, err)
		}
		if err := proxy.Init(ctx, handle, args); err != nil {
			l.heap.FreeDomain(id)
			return "", fmt.Errorf("initializing %q: %w", name, err)
		}
		if err := l.registry.Register(name, handle); err != nil {
			l.heap.FreeDomain(id)
			return "", err
		}
	} else {
		// The attach path names the domain while inserting it, so Init
		// runs after insertion. A failed Init leaves the record
		// inactive, like any other crashed domain.
		var handle domain.Handle
		name, err = l.registry.Attach(image.Name, func(attached string) (domain.Handle, error) {
			handle, err = l.wrap(image, id, attached, args)
			return handle, err
		})
		if err != nil {
			l.heap.FreeDomain(id)
			return "", fmt.Errorf("attaching image %q: %w", image.Name, err)
		}
		if err := proxy.Init(ctx, handle, args); err != nil {
			if controller, ok := proxy.ControllerOf(handle); ok {
				controller.Deactivate("init failed")
			}
			return name, fmt.Errorf("initializing %q: %w", name, err)
		}
	}

	record := Domain{
		Name:   name,
		ID:     id,
		Kind:   kind,
		Image:  image.Name,
		Source: resolved.origin,
		Loaded: l.clock.Now(),
	}
	if !resolved.digest.IsZero() {
		record.Digest = resolved.digest.String()
	}
	l.domains[name] = record
	l.logger.Info("domain loaded",
		"name", name,
		"kind", kind,
		"domain_id", id,
		"image", image.Name,
		"digest", record.Digest,
	)
	return name, nil
}

// wrap instantiates the image as domain id and puts it behind its
// proxy. The proxy's reloader calls the entry again with the same id
// and arguments.
func (l *Loader) wrap(image Image, id uint64, name string, args domain.Args) (domain.Handle, error) {
	instance, err := l.instantiate(image, id, name, args)
	if err != nil {
		return domain.Handle{}, err
	}
	return proxy.Wrap(image.Kind, id, instance, proxy.Options{
		Name:     name,
		Reporter: l.reporter,
		Reloader: func(context.Context) (domain.Basic, error) {
			return l.instantiate(image, id, name, args)
		},
		Clock:  l.clock,
		Logger: l.logger,
	})
}

// instantiate calls the image's entry. A panicking entry is reported
// as an error.
func (l *Loader) instantiate(image Image, id uint64, name string, args domain.Args) (instance domain.Basic, err error) {
	defer func() {
		if cause := recover(); cause != nil {
			instance = nil
			err = fmt.Errorf("entry of image %q panicked: %s", image.Name, crash.Message(cause))
		}
	}()

	instance, err = image.Entry(domain.Env{
		Core: l.coreFor(name, id),
		ID:   id,
		Name: name,
		Heap: l.heap,
		Args: args,
	})
	if err != nil {
		return nil, fmt.Errorf("entry of image %q: %w", image.Name, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("entry of image %q returned no instance", image.Name)
	}
	if instance.DomainID() != id {
		return nil, fmt.Errorf("entry of image %q built domain id %d, want %d", image.Name, instance.DomainID(), id)
	}
	return instance, nil
}

// UpdateDomain swaps the implementation behind target for the one
// registered as replacement. Both must be of kind. The shared data the
// outgoing domain owns is re-tagged to the replacement. Handles
// obtained before the update keep calling the outgoing implementation.
func (l *Loader) UpdateDomain(ctx context.Context, target, replacement string, kind domain.Kind) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.registry.Lookup(target)
	if !ok {
		return fmt.Errorf("updating %q: %w", target, registry.ErrNotFound)
	}
	incoming, ok := l.registry.Query(replacement)
	if !ok {
		return fmt.Errorf("updating %q with %q: %w", target, replacement, registry.ErrNotFound)
	}
	if current.Kind != kind || incoming.Kind() != kind {
		return fmt.Errorf("updating %q (%s) with %q (%s) as %s: %w",
			target, current.Kind, replacement, incoming.Kind(), kind, ErrKindMismatch)
	}
	if !incoming.IsActive() {
		return fmt.Errorf("updating %q with %q: %w", target, replacement, ErrReplacementInactive)
	}

	fromID, toID := current.ID(), incoming.DomainID()
	if l.watchdogPath != "" {
		if err := watchdog.Write(l.watchdogPath, watchdog.State{
			Operation:   "update_domain",
			Target:      target,
			Replacement: replacement,
			Kind:        kind.String(),
			FromID:      fromID,
			ToID:        toID,
			Timestamp:   l.clock.Now(),
		}); err != nil {
			return fmt.Errorf("updating %q: %w", target, err)
		}
		defer l.clearWatchdog()
	}

	if _, err := l.registry.Update(target, incoming); err != nil {
		return err
	}
	moved := 0
	if fromID != toID {
		moved = l.heap.Reassign(fromID, toID)
	}
	l.logger.Info("domain updated",
		"name", target,
		"replacement", replacement,
		"kind", kind,
		"from_id", fromID,
		"to_id", toID,
		"reassigned", moved,
	)
	return nil
}

// clearWatchdog removes the update record. A record left behind is
// reported as an interrupted update on the next boot, so failure is
// only logged.
func (l *Loader) clearWatchdog() {
	if err := watchdog.Clear(l.watchdogPath); err != nil {
		l.logger.Warn("clearing update watchdog", "path", l.watchdogPath, "error", err)
	}
}

// ReloadDomain restarts the domain currently registered under name
// from its image, reusing its id. Its unborrowed shared data is freed
// first; data another domain still borrows is orphaned instead.
//
// ReloadDomain may be called from inside a domain call.
func (l *Loader) ReloadDomain(ctx context.Context, name string) error {
	handle, ok := l.registry.Query(name)
	if !ok {
		return fmt.Errorf("reloading %q: %w", name, registry.ErrNotFound)
	}
	controller, ok := proxy.ControllerOf(handle)
	if !ok {
		return fmt.Errorf("reloading %q: %w", name, ErrNotManaged)
	}
	if controller.IsActive() {
		controller.Deactivate("reload requested")
	}

	report := l.heap.FreeDomain(handle.DomainID())
	if err := controller.Restart(ctx); err != nil {
		return fmt.Errorf("reloading %q: %w", name, err)
	}
	l.logger.Info("domain reloaded",
		"name", name,
		"domain_id", handle.DomainID(),
		"freed", report.Freed,
		"orphaned", len(report.Orphaned),
	)
	return nil
}

// CheckWatchdog reports an update that was interrupted by the daemon
// exiting, then clears the record of it. It returns false when there
// is nothing to report.
func (l *Loader) CheckWatchdog() (watchdog.State, bool, error) {
	if l.watchdogPath == "" {
		return watchdog.State{}, false, nil
	}
	state, found, err := watchdog.Check(l.watchdogPath, l.watchdogMaxAge, l.clock.Now())
	if err != nil {
		return watchdog.State{}, false, fmt.Errorf("checking update watchdog: %w", err)
	}
	if !found {
		return watchdog.State{}, false, nil
	}
	l.logger.Warn("domain update was interrupted",
		"target", state.Target,
		"replacement", state.Replacement,
		"kind", state.Kind,
		"started", state.Timestamp,
	)
	if err := watchdog.Clear(l.watchdogPath); err != nil {
		return state, true, err
	}
	return state, true, nil
}

// Domains returns every domain the loader instantiated, sorted by
// name.
func (l *Loader) Domains() []Domain {
	l.mu.Lock()
	domains := make([]Domain, 0, len(l.domains))
	for _, record := range l.domains {
		domains = append(domains, record)
	}
	l.mu.Unlock()
	sort.Slice(domains, func(i, j int) bool { return domains[i].Name < domains[j].Name })
	return domains
}

// Catalog returns the loader's image catalog.
func (l *Loader) Catalog() *Catalog { return l.catalog }
