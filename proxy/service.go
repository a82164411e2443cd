// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
)

func initPlain[I interface {
	domain.Basic
	Init(context.Context) error
}](ctx context.Context, p *Proxy[I]) error {
	return p.InitWith(ctx, func(ctx context.Context, impl I) error { return impl.Init(ctx) })
}

// FSProxy forwards domain.FS.
type FSProxy struct{ *Proxy[domain.FS] }

func (p *FSProxy) Init(ctx context.Context) error { return initPlain(ctx, p.Proxy) }

func (p *FSProxy) Mount(ctx context.Context, source string, flags uint32) error {
	return p.Invoke(ctx, "Mount", func(ctx context.Context, impl domain.FS) error { return impl.Mount(ctx, source, flags) })
}

func (p *FSProxy) ReadAt(ctx context.Context, inode uint64, offset uint64, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error) {
	return CallMoveN(ctx, p.Proxy, "ReadAt", buf, func(ctx context.Context, impl domain.FS) (rref.RRefVec[byte], int, error) {
		return impl.ReadAt(ctx, inode, offset, buf)
	})
}

// VFSProxy forwards domain.VFS.
type VFSProxy struct{ *Proxy[domain.VFS] }

func (p *VFSProxy) Init(ctx context.Context) error { return initPlain(ctx, p.Proxy) }

func (p *VFSProxy) Open(ctx context.Context, path string, flags uint32) (uint64, error) {
	return Call(ctx, p.Proxy, "Open", func(ctx context.Context, impl domain.VFS) (uint64, error) { return impl.Open(ctx, path, flags) })
}

func (p *VFSProxy) Read(ctx context.Context, inode uint64, offset uint64, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error) {
	return CallMoveN(ctx, p.Proxy, "Read", buf, func(ctx context.Context, impl domain.VFS) (rref.RRefVec[byte], int, error) {
		return impl.Read(ctx, inode, offset, buf)
	})
}

func (p *VFSProxy) Close(ctx context.Context, inode uint64) error {
	return p.Invoke(ctx, "Close", func(ctx context.Context, impl domain.VFS) error { return impl.Close(ctx, inode) })
}

// TaskProxy forwards domain.Task.
type TaskProxy struct{ *Proxy[domain.Task] }

func (p *TaskProxy) Init(ctx context.Context) error { return initPlain(ctx, p.Proxy) }

func (p *TaskProxy) CurrentTID(ctx context.Context) (uint64, error) {
	return Call(ctx, p.Proxy, "CurrentTID", func(ctx context.Context, impl domain.Task) (uint64, error) { return impl.CurrentTID(ctx) })
}

func (p *TaskProxy) Exit(ctx context.Context, code int32) error {
	return p.Invoke(ctx, "Exit", func(ctx context.Context, impl domain.Task) error { return impl.Exit(ctx, code) })
}

// SyscallProxy forwards domain.Syscall.
type SyscallProxy struct{ *Proxy[domain.Syscall] }

func (p *SyscallProxy) Init(ctx context.Context) error { return initPlain(ctx, p.Proxy) }

func (p *SyscallProxy) Call(ctx context.Context, number uint64, args [6]uint64) (int64, error) {
	return Call(ctx, p.Proxy, "Call", func(ctx context.Context, impl domain.Syscall) (int64, error) { return impl.Call(ctx, number, args) })
}

// DevFSProxy forwards domain.DevFS.
type DevFSProxy struct{ *Proxy[domain.DevFS] }

func (p *DevFSProxy) Init(ctx context.Context, vfs string) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.DevFS) error { return impl.Init(ctx, vfs) })
}

func (p *DevFSProxy) Register(ctx context.Context, name string, device string) error {
	return p.Invoke(ctx, "Register", func(ctx context.Context, impl domain.DevFS) error { return impl.Register(ctx, name, device) })
}

func (p *DevFSProxy) Lookup(ctx context.Context, name string) (string, error) {
	return Call(ctx, p.Proxy, "Lookup", func(ctx context.Context, impl domain.DevFS) (string, error) { return impl.Lookup(ctx, name) })
}

// SchedulerProxy forwards domain.Scheduler.
type SchedulerProxy struct{ *Proxy[domain.Scheduler] }

func (p *SchedulerProxy) Init(ctx context.Context) error { return initPlain(ctx, p.Proxy) }

func (p *SchedulerProxy) AddTask(ctx context.Context, info rref.RRef[domain.TaskInfo]) error {
	return CallMoveAll(ctx, p.Proxy, "AddTask", info, func(ctx context.Context, impl domain.Scheduler) error { return impl.AddTask(ctx, info) })
}

func (p *SchedulerProxy) FetchTask(ctx context.Context, scratch rref.RRef[domain.TaskInfo]) (rref.RRef[domain.TaskInfo], error) {
	return CallMove(ctx, p.Proxy, "FetchTask", scratch, func(ctx context.Context, impl domain.Scheduler) (rref.RRef[domain.TaskInfo], error) {
		return impl.FetchTask(ctx, scratch)
	})
}

// LogProxy forwards domain.Log.
type LogProxy struct{ *Proxy[domain.Log] }

func (p *LogProxy) Init(ctx context.Context) error { return initPlain(ctx, p.Proxy) }

func (p *LogProxy) Log(ctx context.Context, level domain.Level, msg rref.RRefVec[byte]) error {
	return CallMoveAll(ctx, p.Proxy, "Log", msg, func(ctx context.Context, impl domain.Log) error { return impl.Log(ctx, level, msg) })
}

func (p *LogProxy) SetMaxLevel(ctx context.Context, filter domain.LevelFilter) error {
	return p.Invoke(ctx, "SetMaxLevel", func(ctx context.Context, impl domain.Log) error { return impl.SetMaxLevel(ctx, filter) })
}

// NetStackProxy forwards domain.NetStack.
type NetStackProxy struct{ *Proxy[domain.NetStack] }

func (p *NetStackProxy) Init(ctx context.Context, nic string) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.NetStack) error { return impl.Init(ctx, nic) })
}

func (p *NetStackProxy) Poll(ctx context.Context) error {
	return p.Invoke(ctx, "Poll", func(ctx context.Context, impl domain.NetStack) error { return impl.Poll(ctx) })
}

func (p *NetStackProxy) Bind(ctx context.Context, port uint16) (uint64, error) {
	return Call(ctx, p.Proxy, "Bind", func(ctx context.Context, impl domain.NetStack) (uint64, error) { return impl.Bind(ctx, port) })
}
