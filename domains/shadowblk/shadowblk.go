// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shadowblk is a block device domain that fronts another one
// and recovers from its crashes.
//
// A read that comes back as a domain crash makes the shadow ask the
// kernel to reload the backing domain, once. If the reload succeeds
// the read is retried once with a freshly allocated buffer (the
// original one went down with the crashed instance) and that result is
// returned whatever it is. If the reload fails, the crash is returned.
// There is no loop: a backend that crashes again on the retry stays
// crashed until an operator intervenes.
//
// Writes, capacity and flush are forwarded without any recovery.
package shadowblk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
	"github.com/bureau-foundation/partition/sheap"
)

// ImageName is the catalog name for this domain.
const ImageName = "shadowblk"

// Shadow is the shadow block domain.
type Shadow struct {
	domain.Base

	core   domain.Core
	heap   *sheap.Heap
	logger *slog.Logger

	mu      sync.RWMutex
	backend string

	restarts atomic.Uint64
	retries  atomic.Uint64
}

// New returns an unbound shadow.
func New(id uint64, core domain.Core, heap *sheap.Heap) *Shadow {
	logger := slog.New(slog.DiscardHandler)
	if core != nil {
		logger = core.Logger()
	}
	return &Shadow{Base: domain.Base{ID: id}, core: core, heap: heap, logger: logger}
}

// Entry is the domain entry point.
func Entry(env domain.Env) (domain.Basic, error) {
	if env.Core == nil || env.Heap == nil {
		return nil, fmt.Errorf("shadowblk needs the core table and the shared heap")
	}
	return New(env.ID, env.Core, env.Heap), nil
}

// Init binds the shadow to the block device registered as backend.
func (s *Shadow) Init(_ context.Context, backend string) error {
	if backend == "" {
		return domain.NewOpError("init", unix.EINVAL)
	}
	handle, ok := s.core.GetDomain(backend)
	if !ok {
		return domain.NewOpError("init", unix.ENODEV)
	}
	if _, ok := handle.BlockDevice(); !ok {
		return domain.NewOpError("init", unix.ENOTBLK)
	}
	s.mu.Lock()
	s.backend = backend
	s.mu.Unlock()
	return nil
}

// Restarts returns how many times the shadow reloaded its backend.
func (s *Shadow) Restarts() uint64 { return s.restarts.Load() }

// Retries returns how many reads were retried after a reload.
func (s *Shadow) Retries() uint64 { return s.retries.Load() }

// device queries the registry on every call, so a hot update of the
// backend name takes effect on the next operation.
func (s *Shadow) device() (domain.BlockDevice, string, error) {
	s.mu.RLock()
	backend := s.backend
	s.mu.RUnlock()
	if backend == "" {
		return nil, "", domain.NewOpError("shadow_block", unix.ENXIO)
	}
	handle, ok := s.core.GetDomain(backend)
	if !ok {
		return nil, backend, domain.NewOpError("shadow_block", unix.ENODEV)
	}
	device, ok := handle.BlockDevice()
	if !ok {
		return nil, backend, domain.NewOpError("shadow_block", unix.ENOTBLK)
	}
	return device, backend, nil
}

func (s *Shadow) ReadBlock(ctx context.Context, block uint32, buf rref.RRef[domain.Block]) (rref.RRef[domain.Block], error) {
	device, backend, err := s.device()
	if err != nil {
		return buf, err
	}
	result, err := device.ReadBlock(ctx, block, buf)
	if !domain.IsCrash(err) {
		return result, err
	}

	// buf stayed with the crashed instance and is released by the
	// reload along with the rest of its shared data.
	s.logger.Warn("backing block device crashed, reloading",
		"backend", backend,
		"block", block,
		"error", err,
	)
	if reloadErr := s.core.ReloadDomain(ctx, backend); reloadErr != nil {
		s.logger.Error("reloading backing block device failed",
			"backend", backend,
			"error", reloadErr,
		)
		return rref.RRef[domain.Block]{}, fmt.Errorf("%w (reload failed: %v)", err, reloadErr)
	}
	s.restarts.Add(1)

	device, _, err = s.device()
	if err != nil {
		return rref.RRef[domain.Block]{}, err
	}
	fresh, err := rref.New(s.heap, s.ID, domain.Block{})
	if err != nil {
		return rref.RRef[domain.Block]{}, fmt.Errorf("allocating retry buffer: %w", err)
	}
	s.retries.Add(1)
	return device.ReadBlock(ctx, block, fresh)
}

func (s *Shadow) WriteBlock(ctx context.Context, block uint32, buf *rref.RRef[domain.Block]) (int, error) {
	device, _, err := s.device()
	if err != nil {
		return 0, err
	}
	return device.WriteBlock(ctx, block, buf)
}

func (s *Shadow) Capacity(ctx context.Context) (uint64, error) {
	device, _, err := s.device()
	if err != nil {
		return 0, err
	}
	return device.Capacity(ctx)
}

func (s *Shadow) Flush(ctx context.Context) error {
	device, _, err := s.device()
	if err != nil {
		return err
	}
	return device.Flush(ctx)
}

func (s *Shadow) HandleIRQ(ctx context.Context) error {
	device, _, err := s.device()
	if err != nil {
		return err
	}
	return device.HandleIRQ(ctx)
}
