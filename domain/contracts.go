// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"context"

	"github.com/bureau-foundation/partition/rref"
)

// Basic is the liveness capability every domain has.
type Basic interface {
	DomainID() uint64
	IsActive() bool
}

// DeviceBase is implemented by domains that service interrupts.
type DeviceBase interface {
	Basic
	HandleIRQ(ctx context.Context) error
}

// BlockOps is the block I/O surface shared by block devices and the
// shadow-block wrapper.
type BlockOps interface {
	// ReadBlock fills buf with the contents of block and hands it
	// back. Ownership of buf moves to the callee and returns with the
	// result.
	ReadBlock(ctx context.Context, block uint32, buf rref.RRef[Block]) (rref.RRef[Block], error)
	// WriteBlock writes a borrowed buffer to block and returns the
	// number of bytes written.
	WriteBlock(ctx context.Context, block uint32, buf *rref.RRef[Block]) (int, error)
	// Capacity returns the device size in bytes.
	Capacity(ctx context.Context) (uint64, error)
	Flush(ctx context.Context) error
}

// FS is a concrete filesystem.
type FS interface {
	Basic
	Init(ctx context.Context) error
	Mount(ctx context.Context, source string, flags uint32) error
	ReadAt(ctx context.Context, inode uint64, offset uint64, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error)
}

// BlockDevice is a raw block storage device.
type BlockDevice interface {
	DeviceBase
	BlockOps
	Init(ctx context.Context, mmio Range) error
}

// CacheBlockDevice is a block cache in front of a block device,
// addressed by byte offset.
type CacheBlockDevice interface {
	DeviceBase
	Init(ctx context.Context, backend string, budget int) error
	ReadAt(ctx context.Context, offset uint64, buf rref.RRefVec[byte]) (rref.RRefVec[byte], error)
	WriteAt(ctx context.Context, offset uint64, buf *rref.RRefVec[byte]) (int, error)
	Flush(ctx context.Context) error
}

// RTC is a real-time clock.
type RTC interface {
	DeviceBase
	Init(ctx context.Context, mmio Range) error
	// ReadTime returns seconds since the Unix epoch.
	ReadTime(ctx context.Context) (int64, error)
}

// GPU is a framebuffer device.
type GPU interface {
	DeviceBase
	Init(ctx context.Context, mmio Range) error
	Flush(ctx context.Context) error
	// Fill copies a borrowed buffer into the framebuffer at offset and
	// returns the number of bytes copied.
	Fill(ctx context.Context, offset uint32, buf *rref.RRefVec[byte]) (int, error)
	BufferRange(ctx context.Context) (Range, error)
}

// Input is a raw input device.
type Input interface {
	DeviceBase
	Init(ctx context.Context, mmio Range) error
	// EventNonblock returns the next pending event, or false when none
	// is queued.
	EventNonblock(ctx context.Context) (InputEvent, bool, error)
}

// VFS is the virtual filesystem switch.
type VFS interface {
	Basic
	Init(ctx context.Context) error
	Open(ctx context.Context, path string, flags uint32) (uint64, error)
	Read(ctx context.Context, inode uint64, offset uint64, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error)
	Close(ctx context.Context, inode uint64) error
}

// UART is a serial port.
type UART interface {
	DeviceBase
	Init(ctx context.Context, mmio Range) error
	Putc(ctx context.Context, c byte) error
	// Getc returns the next received byte, or false when none is
	// pending.
	Getc(ctx context.Context) (byte, bool, error)
}

// PLIC is the platform interrupt controller.
type PLIC interface {
	Basic
	Init(ctx context.Context, mmio Range) error
	HandleIRQ(ctx context.Context) error
	// RegisterIRQ routes irq to the named device domain.
	RegisterIRQ(ctx context.Context, irq uint32, device string) error
}

// Task manages process and thread metadata.
type Task interface {
	Basic
	Init(ctx context.Context) error
	CurrentTID(ctx context.Context) (uint64, error)
	Exit(ctx context.Context, code int32) error
}

// Syscall dispatches system calls.
type Syscall interface {
	Basic
	Init(ctx context.Context) error
	Call(ctx context.Context, number uint64, args [6]uint64) (int64, error)
}

// ShadowBlock wraps a block device with a recovery policy.
type ShadowBlock interface {
	DeviceBase
	BlockOps
	// Init binds the wrapper to the named backing block domain.
	Init(ctx context.Context, backend string) error
}

// BufferedUART buffers input from a UART domain.
type BufferedUART interface {
	DeviceBase
	Init(ctx context.Context, uart string) error
	Putc(ctx context.Context, c byte) error
	Getc(ctx context.Context) (byte, bool, error)
	HaveInput(ctx context.Context) (bool, error)
}

// NetDevice is a network interface.
type NetDevice interface {
	DeviceBase
	Init(ctx context.Context, mmio Range) error
	MAC(ctx context.Context) (MAC, error)
	// Transmit sends a borrowed frame.
	Transmit(ctx context.Context, frame *rref.RRefVec[byte]) (int, error)
	// Receive fills buf with the next frame and hands it back with the
	// frame length, zero when nothing is pending.
	Receive(ctx context.Context, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error)
}

// BufferedInput buffers events from an Input domain.
type BufferedInput interface {
	DeviceBase
	Init(ctx context.Context, input string) error
	EventNonblock(ctx context.Context) (InputEvent, bool, error)
}

// EmptyDevice is a null or zero device.
type EmptyDevice interface {
	Basic
	Init(ctx context.Context) error
	Read(ctx context.Context, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error)
	Write(ctx context.Context, buf *rref.RRefVec[byte]) (int, error)
}

// DevFS names device domains under /dev.
type DevFS interface {
	Basic
	Init(ctx context.Context, vfs string) error
	Register(ctx context.Context, name string, device string) error
	Lookup(ctx context.Context, name string) (string, error)
}

// Scheduler decides which task runs next.
type Scheduler interface {
	Basic
	Init(ctx context.Context) error
	// AddTask moves info into the scheduler's run queue.
	AddTask(ctx context.Context, info rref.RRef[TaskInfo]) error
	// FetchTask consumes a scratch buffer and returns the next task.
	// When nothing is runnable the returned record's TID is NoTask.
	FetchTask(ctx context.Context, scratch rref.RRef[TaskInfo]) (rref.RRef[TaskInfo], error)
}

// Log is a log sink.
type Log interface {
	Basic
	Init(ctx context.Context) error
	Log(ctx context.Context, level Level, msg rref.RRefVec[byte]) error
	SetMaxLevel(ctx context.Context, filter LevelFilter) error
}

// NetStack is a protocol stack bound to a NetDevice domain.
type NetStack interface {
	Basic
	Init(ctx context.Context, nic string) error
	Poll(ctx context.Context) error
	Bind(ctx context.Context, port uint16) (uint64, error)
}
