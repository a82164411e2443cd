// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
)

// pending is a value-or-nothing result, for methods that poll.
type pending[T any] struct {
	value T
	ok    bool
}

func poll[I domain.Basic, T any](ctx context.Context, p *Proxy[I], method string, fn func(context.Context, I) (T, bool, error)) (T, bool, error) {
	result, err := Call(ctx, p, method, func(ctx context.Context, impl I) (pending[T], error) {
		value, ok, err := fn(ctx, impl)
		return pending[T]{value: value, ok: ok}, err
	})
	return result.value, result.ok, err
}

// RTCProxy forwards domain.RTC.
type RTCProxy struct{ *Proxy[domain.RTC] }

func (p *RTCProxy) Init(ctx context.Context, mmio domain.Range) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.RTC) error { return impl.Init(ctx, mmio) })
}

func (p *RTCProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *RTCProxy) ReadTime(ctx context.Context) (int64, error) {
	return Call(ctx, p.Proxy, "ReadTime", func(ctx context.Context, impl domain.RTC) (int64, error) { return impl.ReadTime(ctx) })
}

// GPUProxy forwards domain.GPU.
type GPUProxy struct{ *Proxy[domain.GPU] }

func (p *GPUProxy) Init(ctx context.Context, mmio domain.Range) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.GPU) error { return impl.Init(ctx, mmio) })
}

func (p *GPUProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *GPUProxy) Flush(ctx context.Context) error { return flush(ctx, p.Proxy) }

func (p *GPUProxy) Fill(ctx context.Context, offset uint32, buf *rref.RRefVec[byte]) (int, error) {
	return CallLend(ctx, p.Proxy, "Fill", []rref.Ref{*buf}, func(ctx context.Context, impl domain.GPU) (int, error) {
		return impl.Fill(ctx, offset, buf)
	})
}

func (p *GPUProxy) BufferRange(ctx context.Context) (domain.Range, error) {
	return Call(ctx, p.Proxy, "BufferRange", func(ctx context.Context, impl domain.GPU) (domain.Range, error) { return impl.BufferRange(ctx) })
}

// InputProxy forwards domain.Input.
type InputProxy struct{ *Proxy[domain.Input] }

func (p *InputProxy) Init(ctx context.Context, mmio domain.Range) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.Input) error { return impl.Init(ctx, mmio) })
}

func (p *InputProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *InputProxy) EventNonblock(ctx context.Context) (domain.InputEvent, bool, error) {
	return poll(ctx, p.Proxy, "EventNonblock", func(ctx context.Context, impl domain.Input) (domain.InputEvent, bool, error) {
		return impl.EventNonblock(ctx)
	})
}

// BufferedInputProxy forwards domain.BufferedInput.
type BufferedInputProxy struct{ *Proxy[domain.BufferedInput] }

func (p *BufferedInputProxy) Init(ctx context.Context, input string) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.BufferedInput) error { return impl.Init(ctx, input) })
}

func (p *BufferedInputProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *BufferedInputProxy) EventNonblock(ctx context.Context) (domain.InputEvent, bool, error) {
	return poll(ctx, p.Proxy, "EventNonblock", func(ctx context.Context, impl domain.BufferedInput) (domain.InputEvent, bool, error) {
		return impl.EventNonblock(ctx)
	})
}

// UARTProxy forwards domain.UART.
type UARTProxy struct{ *Proxy[domain.UART] }

func (p *UARTProxy) Init(ctx context.Context, mmio domain.Range) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.UART) error { return impl.Init(ctx, mmio) })
}

func (p *UARTProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *UARTProxy) Putc(ctx context.Context, c byte) error {
	return p.Invoke(ctx, "Putc", func(ctx context.Context, impl domain.UART) error { return impl.Putc(ctx, c) })
}

func (p *UARTProxy) Getc(ctx context.Context) (byte, bool, error) {
	return poll(ctx, p.Proxy, "Getc", func(ctx context.Context, impl domain.UART) (byte, bool, error) { return impl.Getc(ctx) })
}

// BufferedUARTProxy forwards domain.BufferedUART.
type BufferedUARTProxy struct{ *Proxy[domain.BufferedUART] }

func (p *BufferedUARTProxy) Init(ctx context.Context, uart string) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.BufferedUART) error { return impl.Init(ctx, uart) })
}

func (p *BufferedUARTProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *BufferedUARTProxy) Putc(ctx context.Context, c byte) error {
	return p.Invoke(ctx, "Putc", func(ctx context.Context, impl domain.BufferedUART) error { return impl.Putc(ctx, c) })
}

func (p *BufferedUARTProxy) Getc(ctx context.Context) (byte, bool, error) {
	return poll(ctx, p.Proxy, "Getc", func(ctx context.Context, impl domain.BufferedUART) (byte, bool, error) { return impl.Getc(ctx) })
}

func (p *BufferedUARTProxy) HaveInput(ctx context.Context) (bool, error) {
	return Call(ctx, p.Proxy, "HaveInput", func(ctx context.Context, impl domain.BufferedUART) (bool, error) { return impl.HaveInput(ctx) })
}

// NetDeviceProxy forwards domain.NetDevice.
type NetDeviceProxy struct{ *Proxy[domain.NetDevice] }

func (p *NetDeviceProxy) Init(ctx context.Context, mmio domain.Range) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.NetDevice) error { return impl.Init(ctx, mmio) })
}

func (p *NetDeviceProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *NetDeviceProxy) MAC(ctx context.Context) (domain.MAC, error) {
	return Call(ctx, p.Proxy, "MAC", func(ctx context.Context, impl domain.NetDevice) (domain.MAC, error) { return impl.MAC(ctx) })
}

func (p *NetDeviceProxy) Transmit(ctx context.Context, frame *rref.RRefVec[byte]) (int, error) {
	return CallLend(ctx, p.Proxy, "Transmit", []rref.Ref{*frame}, func(ctx context.Context, impl domain.NetDevice) (int, error) {
		return impl.Transmit(ctx, frame)
	})
}

func (p *NetDeviceProxy) Receive(ctx context.Context, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error) {
	return CallMoveN(ctx, p.Proxy, "Receive", buf, func(ctx context.Context, impl domain.NetDevice) (rref.RRefVec[byte], int, error) {
		return impl.Receive(ctx, buf)
	})
}

// PLICProxy forwards domain.PLIC.
type PLICProxy struct{ *Proxy[domain.PLIC] }

func (p *PLICProxy) Init(ctx context.Context, mmio domain.Range) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.PLIC) error { return impl.Init(ctx, mmio) })
}

func (p *PLICProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *PLICProxy) RegisterIRQ(ctx context.Context, irq uint32, device string) error {
	return p.Invoke(ctx, "RegisterIRQ", func(ctx context.Context, impl domain.PLIC) error { return impl.RegisterIRQ(ctx, irq, device) })
}

// EmptyDeviceProxy forwards domain.EmptyDevice.
type EmptyDeviceProxy struct{ *Proxy[domain.EmptyDevice] }

func (p *EmptyDeviceProxy) Init(ctx context.Context) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.EmptyDevice) error { return impl.Init(ctx) })
}

func (p *EmptyDeviceProxy) Read(ctx context.Context, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error) {
	return CallMoveN(ctx, p.Proxy, "Read", buf, func(ctx context.Context, impl domain.EmptyDevice) (rref.RRefVec[byte], int, error) {
		return impl.Read(ctx, buf)
	})
}

func (p *EmptyDeviceProxy) Write(ctx context.Context, buf *rref.RRefVec[byte]) (int, error) {
	return CallLend(ctx, p.Proxy, "Write", []rref.Ref{*buf}, func(ctx context.Context, impl domain.EmptyDevice) (int, error) {
		return impl.Write(ctx, buf)
	})
}
