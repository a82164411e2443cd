// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
)

// Block proxies share the block I/O forwarding.
type blockOps interface {
	domain.Basic
	domain.BlockOps
}

func readBlock[I blockOps](ctx context.Context, p *Proxy[I], block uint32, buf rref.RRef[domain.Block]) (rref.RRef[domain.Block], error) {
	return CallMove(ctx, p, "ReadBlock", buf, func(ctx context.Context, impl I) (rref.RRef[domain.Block], error) {
		return impl.ReadBlock(ctx, block, buf)
	})
}

func writeBlock[I blockOps](ctx context.Context, p *Proxy[I], block uint32, buf *rref.RRef[domain.Block]) (int, error) {
	return CallLend(ctx, p, "WriteBlock", []rref.Ref{*buf}, func(ctx context.Context, impl I) (int, error) {
		return impl.WriteBlock(ctx, block, buf)
	})
}

func capacity[I blockOps](ctx context.Context, p *Proxy[I]) (uint64, error) {
	return Call(ctx, p, "Capacity", func(ctx context.Context, impl I) (uint64, error) {
		return impl.Capacity(ctx)
	})
}

func flush[I interface {
	domain.Basic
	Flush(context.Context) error
}](ctx context.Context, p *Proxy[I]) error {
	return p.Invoke(ctx, "Flush", func(ctx context.Context, impl I) error { return impl.Flush(ctx) })
}

func handleIRQ[I interface {
	domain.Basic
	HandleIRQ(context.Context) error
}](ctx context.Context, p *Proxy[I]) error {
	return p.Invoke(ctx, "HandleIRQ", func(ctx context.Context, impl I) error { return impl.HandleIRQ(ctx) })
}

// BlockDeviceProxy forwards domain.BlockDevice.
type BlockDeviceProxy struct{ *Proxy[domain.BlockDevice] }

func (p *BlockDeviceProxy) Init(ctx context.Context, mmio domain.Range) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.BlockDevice) error { return impl.Init(ctx, mmio) })
}

func (p *BlockDeviceProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *BlockDeviceProxy) ReadBlock(ctx context.Context, block uint32, buf rref.RRef[domain.Block]) (rref.RRef[domain.Block], error) {
	return readBlock(ctx, p.Proxy, block, buf)
}

func (p *BlockDeviceProxy) WriteBlock(ctx context.Context, block uint32, buf *rref.RRef[domain.Block]) (int, error) {
	return writeBlock(ctx, p.Proxy, block, buf)
}

func (p *BlockDeviceProxy) Capacity(ctx context.Context) (uint64, error) { return capacity(ctx, p.Proxy) }

func (p *BlockDeviceProxy) Flush(ctx context.Context) error { return flush(ctx, p.Proxy) }

// ShadowBlockProxy forwards domain.ShadowBlock.
type ShadowBlockProxy struct{ *Proxy[domain.ShadowBlock] }

func (p *ShadowBlockProxy) Init(ctx context.Context, backend string) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.ShadowBlock) error { return impl.Init(ctx, backend) })
}

func (p *ShadowBlockProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *ShadowBlockProxy) ReadBlock(ctx context.Context, block uint32, buf rref.RRef[domain.Block]) (rref.RRef[domain.Block], error) {
	return readBlock(ctx, p.Proxy, block, buf)
}

func (p *ShadowBlockProxy) WriteBlock(ctx context.Context, block uint32, buf *rref.RRef[domain.Block]) (int, error) {
	return writeBlock(ctx, p.Proxy, block, buf)
}

func (p *ShadowBlockProxy) Capacity(ctx context.Context) (uint64, error) { return capacity(ctx, p.Proxy) }

func (p *ShadowBlockProxy) Flush(ctx context.Context) error { return flush(ctx, p.Proxy) }

// CacheBlockDeviceProxy forwards domain.CacheBlockDevice.
type CacheBlockDeviceProxy struct{ *Proxy[domain.CacheBlockDevice] }

func (p *CacheBlockDeviceProxy) Init(ctx context.Context, backend string, budget int) error {
	return p.InitWith(ctx, func(ctx context.Context, impl domain.CacheBlockDevice) error {
		return impl.Init(ctx, backend, budget)
	})
}

func (p *CacheBlockDeviceProxy) HandleIRQ(ctx context.Context) error { return handleIRQ(ctx, p.Proxy) }

func (p *CacheBlockDeviceProxy) ReadAt(ctx context.Context, offset uint64, buf rref.RRefVec[byte]) (rref.RRefVec[byte], error) {
	return CallMove(ctx, p.Proxy, "ReadAt", buf, func(ctx context.Context, impl domain.CacheBlockDevice) (rref.RRefVec[byte], error) {
		return impl.ReadAt(ctx, offset, buf)
	})
}

func (p *CacheBlockDeviceProxy) WriteAt(ctx context.Context, offset uint64, buf *rref.RRefVec[byte]) (int, error) {
	return CallLend(ctx, p.Proxy, "WriteAt", []rref.Ref{*buf}, func(ctx context.Context, impl domain.CacheBlockDevice) (int, error) {
		return impl.WriteAt(ctx, offset, buf)
	})
}

func (p *CacheBlockDeviceProxy) Flush(ctx context.Context) error { return flush(ctx, p.Proxy) }
