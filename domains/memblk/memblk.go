// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package memblk is a RAM-backed block device domain.
//
// The device comes up holding a fixed pattern (see [Pattern]), so a
// freshly restarted instance reads back the same contents as the one
// it replaced until something is written. Writes live in memory and
// are lost on restart. [Device.PanicOnRead] injects faults for
// exercising the crash path.
package memblk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
)

// ImageName is the catalog name for this domain.
const ImageName = "memblk"

// DefaultBlocks is the device size when Init gets an MMIO range too
// small to hold a single block.
const DefaultBlocks = 64

// Device is a RAM block device.
type Device struct {
	domain.Base

	logger *slog.Logger

	mu     sync.RWMutex
	blocks []domain.Block

	// faults is the number of upcoming reads that panic.
	faults atomic.Int64
	reads  atomic.Uint64
	writes atomic.Uint64
	irqs   atomic.Uint64
}

// New returns an uninitialized device with the given id.
func New(id uint64, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Device{Base: domain.Base{ID: id}, logger: logger}
}

// Entry is the domain entry point.
func Entry(env domain.Env) (domain.Basic, error) {
	var logger *slog.Logger
	if env.Core != nil {
		logger = env.Core.Logger()
	}
	return New(env.ID, logger), nil
}

// Pattern returns the initial contents of block.
func Pattern(block uint32) domain.Block {
	var contents domain.Block
	for i := range contents {
		contents[i] = byte(uint32(i)*7 + block*13)
	}
	return contents
}

// Init sizes the device from the MMIO range, one block per BlockSize
// bytes.
func (d *Device) Init(_ context.Context, mmio domain.Range) error {
	count := int(mmio.Len() / domain.BlockSize)
	if count == 0 {
		count = DefaultBlocks
	}
	blocks := make([]domain.Block, count)
	for i := range blocks {
		blocks[i] = Pattern(uint32(i))
	}

	d.mu.Lock()
	d.blocks = blocks
	d.mu.Unlock()
	d.logger.Debug("memblk initialized", "blocks", count, "mmio", mmio)
	return nil
}

// PanicOnRead makes the next n reads panic.
func (d *Device) PanicOnRead(n int) {
	d.faults.Store(int64(n))
}

// Reads returns how many reads completed.
func (d *Device) Reads() uint64 { return d.reads.Load() }

func (d *Device) takeFault() bool {
	for {
		remaining := d.faults.Load()
		if remaining <= 0 {
			return false
		}
		if d.faults.CompareAndSwap(remaining, remaining-1) {
			return true
		}
	}
}

func (d *Device) ReadBlock(_ context.Context, block uint32, buf rref.RRef[domain.Block]) (rref.RRef[domain.Block], error) {
	if d.takeFault() {
		panic(fmt.Sprintf("memblk: injected fault reading block %d", block))
	}
	target := buf.Get()
	if target == nil {
		return buf, domain.NewOpError("read_block", unix.EFAULT)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(block) >= len(d.blocks) {
		return buf, domain.NewOpError("read_block", unix.EINVAL)
	}
	*target = d.blocks[block]
	d.reads.Add(1)
	return buf, nil
}

func (d *Device) WriteBlock(_ context.Context, block uint32, buf *rref.RRef[domain.Block]) (int, error) {
	source := buf.Get()
	if source == nil {
		return 0, domain.NewOpError("write_block", unix.EFAULT)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if int(block) >= len(d.blocks) {
		return 0, domain.NewOpError("write_block", unix.EINVAL)
	}
	d.blocks[block] = *source
	d.writes.Add(1)
	return domain.BlockSize, nil
}

func (d *Device) Capacity(context.Context) (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint64(len(d.blocks)) * domain.BlockSize, nil
}

func (d *Device) Flush(context.Context) error { return nil }

func (d *Device) HandleIRQ(context.Context) error {
	d.irqs.Add(1)
	return nil
}
