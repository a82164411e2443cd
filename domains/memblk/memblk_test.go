// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memblk

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
	"github.com/bureau-foundation/partition/sheap"
)

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	heap := sheap.New(sheap.Config{})
	device := New(1, nil)
	if err := device.Init(ctx, domain.Range{Start: 0x1000, End: 0x1000 + 8*domain.BlockSize}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if capacity, _ := device.Capacity(ctx); capacity != 8*domain.BlockSize {
		t.Errorf("Capacity() = %d, want %d", capacity, 8*domain.BlockSize)
	}

	buf, err := rref.New(heap, 1, domain.Block{})
	if err != nil {
		t.Fatalf("rref.New: %v", err)
	}
	buf, err = device.ReadBlock(ctx, 3, buf)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if *buf.Get() != Pattern(3) {
		t.Error("fresh device block 3 does not hold the pattern")
	}

	buf.Get()[0] = 0xEE
	if n, err := device.WriteBlock(ctx, 3, &buf); err != nil || n != domain.BlockSize {
		t.Fatalf("WriteBlock = %d, %v", n, err)
	}
	other, _ := rref.New(heap, 1, domain.Block{})
	other, err = device.ReadBlock(ctx, 3, other)
	if err != nil || other.Get()[0] != 0xEE {
		t.Errorf("read after write = %#x, %v", other.Get()[0], err)
	}
}

func TestOutOfRange(t *testing.T) {
	ctx := context.Background()
	heap := sheap.New(sheap.Config{})
	device := New(1, nil)
	if err := device.Init(ctx, domain.Range{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	buf, _ := rref.New(heap, 1, domain.Block{})
	if _, err := device.ReadBlock(ctx, DefaultBlocks, buf); !errors.Is(err, unix.EINVAL) {
		t.Errorf("ReadBlock past the end error = %v, want EINVAL", err)
	}
	if _, err := device.WriteBlock(ctx, DefaultBlocks, &buf); !errors.Is(err, unix.EINVAL) {
		t.Errorf("WriteBlock past the end error = %v, want EINVAL", err)
	}
}

func TestPanicOnRead(t *testing.T) {
	ctx := context.Background()
	heap := sheap.New(sheap.Config{})
	device := New(1, nil)
	device.Init(ctx, domain.Range{})
	device.PanicOnRead(1)

	buf, _ := rref.New(heap, 1, domain.Block{})
	func() {
		defer func() {
			if recover() == nil {
				t.Error("first read did not panic")
			}
		}()
		device.ReadBlock(ctx, 0, buf)
	}()
	if _, err := device.ReadBlock(ctx, 0, buf); err != nil {
		t.Errorf("second read: %v", err)
	}
	if device.Reads() != 1 {
		t.Errorf("Reads() = %d, want 1", device.Reads())
	}
}

func TestEntry(t *testing.T) {
	instance, err := Entry(domain.Env{ID: 42})
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if !domain.Satisfies(domain.KindBlockDevice, instance) || instance.DomainID() != 42 {
		t.Errorf("Entry built %T with id %d", instance, instance.DomainID())
	}
}
