// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package nulldev provides the null and zero device domains. Both
// discard writes; reads from null return nothing and reads from zero
// fill the buffer with zeroes.
package nulldev

import (
	"context"
	"sync/atomic"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
)

// Catalog names for the two devices.
const (
	NullImage = "null"
	ZeroImage = "zero"
)

// Device is a null or zero device.
type Device struct {
	domain.Base

	zero    bool
	written atomic.Uint64
}

// NewNull returns a null device.
func NewNull(id uint64) *Device { return &Device{Base: domain.Base{ID: id}} }

// NewZero returns a zero device.
func NewZero(id uint64) *Device { return &Device{Base: domain.Base{ID: id}, zero: true} }

// NullEntry is the entry point of the null device.
func NullEntry(env domain.Env) (domain.Basic, error) { return NewNull(env.ID), nil }

// ZeroEntry is the entry point of the zero device.
func ZeroEntry(env domain.Env) (domain.Basic, error) { return NewZero(env.ID), nil }

func (d *Device) Init(context.Context) error { return nil }

func (d *Device) Read(_ context.Context, buf rref.RRefVec[byte]) (rref.RRefVec[byte], int, error) {
	if !d.zero {
		return buf, 0, nil
	}
	clear(buf.Slice())
	return buf, buf.Len(), nil
}

func (d *Device) Write(_ context.Context, buf *rref.RRefVec[byte]) (int, error) {
	d.written.Add(uint64(buf.Len()))
	return buf.Len(), nil
}

// Written returns the number of bytes discarded so far.
func (d *Device) Written() uint64 { return d.written.Load() }
