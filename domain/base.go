// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"context"

	"golang.org/x/sys/unix"
)

// Base gives a domain implementation its identity. Embed it and set ID
// from Env.ID. IsActive always reports true: a running instance is by
// definition active, and the proxy in front of it tracks whether it
// has crashed.
type Base struct {
	ID uint64
}

func (b *Base) DomainID() uint64 { return b.ID }

func (b *Base) IsActive() bool { return true }

// NoIRQ is embedded by device domains that have no interrupt work.
type NoIRQ struct{}

func (NoIRQ) HandleIRQ(context.Context) error {
	return NewOpError("handle_irq", unix.ENOSYS)
}
