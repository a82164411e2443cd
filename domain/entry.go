// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/partition/sheap"
)

// Core is the function table the kernel hands every domain at entry.
// It is the only way a domain reaches the rest of the system.
type Core interface {
	// Logger returns the shared diagnostics channel, scoped to the
	// calling domain.
	Logger() *slog.Logger

	// Now returns the kernel's notion of the current time.
	Now() time.Time

	// GetDomain returns the current handle registered under name.
	GetDomain(name string) (Handle, bool)

	// ReloadDomain restarts the domain registered under name from its
	// original image, reusing its id.
	ReloadDomain(ctx context.Context, name string) error

	// Backtrace returns the resume sites of the open cross-domain calls
	// on the hart bound to ctx, innermost first.
	Backtrace(ctx context.Context) []string
}

// Args carries the kind-specific extra entry arguments.
type Args struct {
	// MMIO is the device's memory-mapped I/O range, for kinds that
	// drive hardware.
	MMIO *Range `json:"mmio,omitempty"`

	// CacheBudget is the number of blocks a cache-block domain may
	// hold.
	CacheBudget int `json:"cache_budget,omitempty"`

	// Backend names the domain a wrapper domain forwards to.
	Backend string `json:"backend,omitempty"`
}

// Env is everything a domain receives at entry.
type Env struct {
	Core Core
	ID   uint64
	Name string
	Heap *sheap.Heap
	Args Args
}

// Entry constructs a domain instance. The returned value must
// implement the interface of the kind it is registered as; it is not
// initialized yet (the loader calls Init through the proxy).
type Entry func(env Env) (Basic, error)
