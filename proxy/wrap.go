// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/partition/crash"
	"github.com/bureau-foundation/partition/domain"
)

// Controller is the kind-independent lifecycle surface of a proxy.
// Every typed proxy satisfies it through its embedded *Proxy.
type Controller interface {
	domain.Basic
	Name() string
	Kind() domain.Kind
	State() crash.State
	Stats() Stats
	Deactivate(reason string)
	Restart(ctx context.Context) error
	SetReloader(Reloader)
}

// ControllerOf returns the lifecycle surface of a handle built by Wrap.
func ControllerOf(handle domain.Handle) (Controller, bool) {
	controller, ok := handle.Basic().(Controller)
	return controller, ok
}

// Wrap puts instance behind the typed proxy for kind and returns the
// tagged handle the registry stores. instance must implement the
// kind's interface.
func Wrap(kind domain.Kind, id uint64, instance domain.Basic, options Options) (domain.Handle, error) {
	var (
		wrapped domain.Basic
		err     error
	)
	switch kind {
	case domain.KindFS:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.FS]) domain.Basic { return &FSProxy{p} })
	case domain.KindBlockDevice:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.BlockDevice]) domain.Basic { return &BlockDeviceProxy{p} })
	case domain.KindCacheBlockDevice:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.CacheBlockDevice]) domain.Basic { return &CacheBlockDeviceProxy{p} })
	case domain.KindRTC:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.RTC]) domain.Basic { return &RTCProxy{p} })
	case domain.KindGPU:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.GPU]) domain.Basic { return &GPUProxy{p} })
	case domain.KindInput:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.Input]) domain.Basic { return &InputProxy{p} })
	case domain.KindVFS:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.VFS]) domain.Basic { return &VFSProxy{p} })
	case domain.KindUART:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.UART]) domain.Basic { return &UARTProxy{p} })
	case domain.KindPLIC:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.PLIC]) domain.Basic { return &PLICProxy{p} })
	case domain.KindTask:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.Task]) domain.Basic { return &TaskProxy{p} })
	case domain.KindSyscall:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.Syscall]) domain.Basic { return &SyscallProxy{p} })
	case domain.KindShadowBlock:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.ShadowBlock]) domain.Basic { return &ShadowBlockProxy{p} })
	case domain.KindBufferedUART:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.BufferedUART]) domain.Basic { return &BufferedUARTProxy{p} })
	case domain.KindNetDevice:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.NetDevice]) domain.Basic { return &NetDeviceProxy{p} })
	case domain.KindBufferedInput:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.BufferedInput]) domain.Basic { return &BufferedInputProxy{p} })
	case domain.KindEmptyDevice:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.EmptyDevice]) domain.Basic { return &EmptyDeviceProxy{p} })
	case domain.KindDevFS:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.DevFS]) domain.Basic { return &DevFSProxy{p} })
	case domain.KindScheduler:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.Scheduler]) domain.Basic { return &SchedulerProxy{p} })
	case domain.KindLog:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.Log]) domain.Basic { return &LogProxy{p} })
	case domain.KindNetStack:
		wrapped, err = wrap(kind, id, instance, options, func(p *Proxy[domain.NetStack]) domain.Basic { return &NetStackProxy{p} })
	default:
		return domain.Handle{}, fmt.Errorf("%w: undefined kind %d", domain.ErrInvalidHandle, uint8(kind))
	}
	if err != nil {
		return domain.Handle{}, err
	}
	return domain.NewHandle(kind, wrapped)
}

func wrap[I domain.Basic](kind domain.Kind, id uint64, instance domain.Basic, options Options, typed func(*Proxy[I]) domain.Basic) (domain.Basic, error) {
	impl, ok := instance.(I)
	if !ok {
		return nil, fmt.Errorf("%w: %T does not implement %s", domain.ErrInvalidHandle, instance, kind)
	}
	return typed(New(kind, id, impl, options)), nil
}

// Init runs the kind's Init method on a freshly wrapped handle with the
// arguments the entry ABI supplies for that kind. The call is recorded
// for replay on restart.
func Init(ctx context.Context, handle domain.Handle, args domain.Args) error {
	mmio := func() (domain.Range, error) {
		if args.MMIO == nil {
			return domain.Range{}, fmt.Errorf("%s domain requires an mmio range", handle.Kind())
		}
		return *args.MMIO, nil
	}
	switch p := handle.Basic().(type) {
	case interface {
		Init(context.Context) error
	}:
		return p.Init(ctx)
	case interface {
		Init(context.Context, domain.Range) error
	}:
		r, err := mmio()
		if err != nil {
			return err
		}
		return p.Init(ctx, r)
	case interface {
		Init(context.Context, string) error
	}:
		return p.Init(ctx, args.Backend)
	case interface {
		Init(context.Context, string, int) error
	}:
		return p.Init(ctx, args.Backend, args.CacheBudget)
	default:
		return fmt.Errorf("%s handle has no Init method", handle.Kind())
	}
}
