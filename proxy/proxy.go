// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/partition/continuation"
	"github.com/bureau-foundation/partition/crash"
	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/lib/clock"
)

// packagePrefix identifies this package's frames when saving a call
// site, so continuations point at the code that called the proxy.
const packagePrefix = "github.com/bureau-foundation/partition/proxy."

// ErrNoReloader is returned by Restart on a proxy with no way to
// obtain a fresh instance.
var ErrNoReloader = errors.New("domain has no reloader")

// Reloader produces a fresh, uninitialized instance of the wrapped
// domain for a restart.
type Reloader func(ctx context.Context) (domain.Basic, error)

// Options configures a proxy.
type Options struct {
	// Name is the registry name, used in errors and crash records.
	Name string

	// Reporter receives a record for every crash. May be nil.
	Reporter crash.Reporter

	// Reloader is used by Restart. May be set later with SetReloader.
	Reloader Reloader

	// Clock timestamps crash records. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives lifecycle events. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Stats are a proxy's lifetime counters.
type Stats struct {
	Calls    uint64      `json:"calls"`
	Refused  uint64      `json:"refused"`
	Crashes  uint64      `json:"crashes"`
	Restarts uint64      `json:"restarts"`
	InFlight int64       `json:"in_flight"`
	Retired  int         `json:"retired"`
	State    crash.State `json:"state"`
}

// Proxy forwards calls to an implementation of interface I, gating
// each call on the domain being active. It is safe for concurrent use
// from any number of harts.
type Proxy[I domain.Basic] struct {
	id   uint64
	name string
	kind domain.Kind

	// mu guards the instance fields. It is never held while the
	// implementation runs, so a long or crashing call cannot block a
	// restart or a lookup.
	mu       sync.RWMutex
	wrapped  I
	retired  []I
	init     func(context.Context, I) error
	reloader Reloader

	// generation counts instance swaps. It only changes under mu, so a
	// call that read wrapped under mu knows which instance it runs in.
	generation atomic.Uint64

	// restartMu serializes restarts.
	restartMu sync.Mutex

	// active is the liveness flag. Atomic loads and stores are
	// sequentially consistent, so a deactivation on one hart is seen
	// by the next check on every other hart.
	active atomic.Bool
	state  atomic.Uint32

	calls    atomic.Uint64
	refused  atomic.Uint64
	crashes  atomic.Uint64
	restarts atomic.Uint64
	inFlight atomic.Int64

	reporter crash.Reporter
	clock    clock.Clock
	logger   *slog.Logger
}

// New wraps instance as domain id of the given kind.
func New[I domain.Basic](kind domain.Kind, id uint64, instance I, options Options) *Proxy[I] {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	p := &Proxy[I]{
		id:       id,
		name:     options.Name,
		kind:     kind,
		wrapped:  instance,
		reloader: options.Reloader,
		reporter: options.Reporter,
		clock:    clk,
		logger:   logger.With("domain", options.Name, "domain_id", id),
	}
	p.active.Store(true)
	p.state.Store(uint32(crash.Active))
	return p
}

// DomainID returns the id of the wrapped domain.
func (p *Proxy[I]) DomainID() uint64 { return p.id }

// Name returns the registry name given at construction.
func (p *Proxy[I]) Name() string { return p.name }

// Kind returns the domain kind.
func (p *Proxy[I]) Kind() domain.Kind { return p.kind }

// IsActive reports whether calls will be forwarded: the proxy has not
// observed a crash, and the implementation itself reports active.
func (p *Proxy[I]) IsActive() bool {
	if !p.active.Load() {
		return false
	}
	return p.current().IsActive()
}

// State returns the lifecycle state.
func (p *Proxy[I]) State() crash.State {
	return crash.State(p.state.Load())
}

// Stats returns the proxy's counters.
func (p *Proxy[I]) Stats() Stats {
	p.mu.RLock()
	retired := len(p.retired)
	p.mu.RUnlock()
	return Stats{
		Calls:    p.calls.Load(),
		Refused:  p.refused.Load(),
		Crashes:  p.crashes.Load(),
		Restarts: p.restarts.Load(),
		InFlight: p.inFlight.Load(),
		Retired:  retired,
		State:    p.State(),
	}
}

// Instance returns the implementation calls are currently forwarded
// to.
func (p *Proxy[I]) Instance() I {
	return p.current()
}

func (p *Proxy[I]) current() I {
	impl, _ := p.snapshot()
	return impl
}

// snapshot returns the current instance and its generation.
func (p *Proxy[I]) snapshot() (I, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wrapped, p.generation.Load()
}

// SetReloader installs the function Restart uses to obtain a fresh
// instance.
func (p *Proxy[I]) SetReloader(reloader Reloader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloader = reloader
}

func (p *Proxy[I]) crashError(method string) error {
	return &domain.CrashError{DomainID: p.id, Name: p.name, Method: method}
}

// Invoke runs fn against the current implementation if the domain is
// active. fn must pass the ctx it receives to any nested domain call.
func (p *Proxy[I]) Invoke(ctx context.Context, method string, fn func(context.Context, I) error) error {
	if !p.IsActive() {
		p.refused.Add(1)
		return p.crashError(method)
	}
	return p.enter(ctx, method, fn)
}

// InitWith runs an Init call without the liveness check and records it
// so Restart can replay it on a fresh instance.
func (p *Proxy[I]) InitWith(ctx context.Context, fn func(context.Context, I) error) error {
	p.mu.Lock()
	p.init = fn
	p.mu.Unlock()
	return p.enter(ctx, "Init", fn)
}

// enter is the trampoline shared by every call path.
func (p *Proxy[I]) enter(ctx context.Context, method string, fn func(context.Context, I) error) (err error) {
	ctx, hart := continuation.Ensure(ctx)
	stack := hart.Stack()
	impl, generation := p.snapshot()

	entry := stack.Push(continuation.Continuation{
		Registers: continuation.CaptureOutside(packagePrefix),
		Resume:    func(any) error { return p.crashError(method) },
		Domain:    p.id,
		Method:    method,
	}) - 1

	p.calls.Add(1)
	p.inFlight.Add(1)
	defer func() {
		p.inFlight.Add(-1)
		if cause := recover(); cause != nil {
			err = p.fault(ctx, hart, entry, generation, method, cause)
			return
		}
		stack.Truncate(entry)
	}()

	err = fn(ctx, impl)
	if domain.IsCrash(err) && !p.active.Load() {
		// The call reported a crash and this domain is the one that
		// went down (another hart deactivated it mid-call). Report it
		// as ours rather than whatever nested domain surfaced it.
		return p.crashError(method)
	}
	return err
}

// fault handles a panic recovered from the implementation. It runs in
// the trampoline's deferred function, with the panicking frames still
// on the stack. A panic from an instance that has since been replaced
// is reported but leaves the replacement running.
func (p *Proxy[I]) fault(ctx context.Context, hart *continuation.Hart, entry int, generation uint64, method string, cause any) error {
	record := crash.Capture(cause)
	retired := generation != p.generation.Load()
	if retired {
		p.logger.Warn("replaced instance panicked", "method", method, "generation", generation)
	} else {
		p.deactivate("panic in "+method, true)
	}

	stack := hart.Stack()
	abandoned := stack.Truncate(entry + 1)
	resume, ok := stack.Pop()
	if !ok {
		// The entry was already gone; nothing to resume through but
		// the outcome is the same.
		resume = continuation.Continuation{Resume: func(any) error { return p.crashError(method) }}
	}

	record.DomainID = p.id
	record.Domain = p.name
	record.Kind = p.kind.String()
	record.Method = method
	record.Hart = hart.ID()
	record.ResumeSite = resume.ResumeSite()
	record.Time = p.clock.Now()
	if p.reporter != nil {
		p.reporter.Report(ctx, record)
	}
	p.logger.Warn("domain call abandoned",
		"method", method,
		"hart", hart.ID(),
		"depth", entry,
		"abandoned_nested", abandoned,
	)
	return resume.Resume(cause)
}

// Deactivate marks the domain inactive. Every later call fails with a
// crash error until a restart succeeds. Calls already running are not
// interrupted.
func (p *Proxy[I]) Deactivate(reason string) {
	p.deactivate(reason, false)
}

// deactivate counts a crash only for the fault that took an active
// domain down.
func (p *Proxy[I]) deactivate(reason string, fault bool) {
	if !p.active.Swap(false) {
		return
	}
	p.state.Store(uint32(crash.Inactive))
	if fault {
		p.crashes.Add(1)
	}
	p.logger.Warn("domain deactivated", "reason", reason)
}

// Replace swaps in a new implementation instance and reactivates the
// proxy. The previous instance is retained.
func (p *Proxy[I]) Replace(instance I) {
	p.mu.Lock()
	p.retired = append(p.retired, p.wrapped)
	p.wrapped = instance
	p.generation.Add(1)
	p.mu.Unlock()
	p.state.Store(uint32(crash.Active))
	p.active.Store(true)
}

// Restart replaces the implementation with a fresh instance from the
// reloader, replaying the recorded Init call on it first. If anything
// fails the proxy is left in the Failed state and stays inactive.
func (p *Proxy[I]) Restart(ctx context.Context) error {
	p.restartMu.Lock()
	defer p.restartMu.Unlock()

	p.mu.RLock()
	reloader, init := p.reloader, p.init
	p.mu.RUnlock()

	if err := p.restart(ctx, reloader, init); err != nil {
		p.active.Store(false)
		p.state.Store(uint32(crash.Failed))
		p.logger.Error("domain restart failed", "error", err)
		return fmt.Errorf("restarting domain %s: %w", p.name, err)
	}
	p.restarts.Add(1)
	p.logger.Info("domain restarted", "restarts", p.restarts.Load())
	return nil
}

func (p *Proxy[I]) restart(ctx context.Context, reloader Reloader, init func(context.Context, I) error) error {
	if reloader == nil {
		return ErrNoReloader
	}
	fresh, err := reloader(ctx)
	if err != nil {
		return fmt.Errorf("reloading: %w", err)
	}
	instance, ok := fresh.(I)
	if !ok {
		return fmt.Errorf("reloaded %T does not implement %s", fresh, p.kind)
	}
	if init != nil {
		if err := initialize(ctx, instance, init); err != nil {
			return err
		}
	}
	p.Replace(instance)
	return nil
}

// initialize runs init on an instance that is not yet reachable
// through the proxy, converting a panic into an error.
func initialize[I domain.Basic](ctx context.Context, instance I, init func(context.Context, I) error) (err error) {
	defer func() {
		if cause := recover(); cause != nil {
			err = fmt.Errorf("init panicked: %s", crash.Message(cause))
		}
	}()
	if err := init(ctx, instance); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return nil
}

// Call is Invoke for methods with a result.
func Call[I domain.Basic, R any](ctx context.Context, p *Proxy[I], method string, fn func(context.Context, I) (R, error)) (R, error) {
	var result R
	err := p.Invoke(ctx, method, func(ctx context.Context, impl I) error {
		var err error
		result, err = fn(ctx, impl)
		return err
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
