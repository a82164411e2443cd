// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/partition/continuation"
	"github.com/bureau-foundation/partition/domain"
)

// core is the domain.Core a loaded domain receives. Everything but the
// logger is shared; the logger carries the domain's name and id.
type core struct {
	loader *Loader
	logger *slog.Logger
}

func (l *Loader) coreFor(name string, id uint64) domain.Core {
	return core{
		loader: l,
		logger: l.logger.With("domain", name, "domain_id", id),
	}
}

func (c core) Logger() *slog.Logger { return c.logger }

func (c core) Now() time.Time { return c.loader.clock.Now() }

func (c core) GetDomain(name string) (domain.Handle, bool) {
	return c.loader.registry.Query(name)
}

func (c core) ReloadDomain(ctx context.Context, name string) error {
	return c.loader.ReloadDomain(ctx, name)
}

func (c core) Backtrace(ctx context.Context) []string {
	return Backtrace(ctx)
}

// Backtrace returns the resume sites of the cross-domain calls open on
// the hart bound to ctx, innermost first, formatted as
// "domain #<id> <method> at <site>".
func Backtrace(ctx context.Context) []string {
	hart, ok := continuation.FromContext(ctx)
	if !ok {
		return nil
	}
	entries := hart.Stack().Snapshot()
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, formatEntry(entry))
	}
	return lines
}

func formatEntry(entry continuation.Continuation) string {
	if entry.Domain == 0 {
		return fmt.Sprintf("kernel %s at %s", entry.Method, entry.ResumeSite())
	}
	return fmt.Sprintf("domain #%d %s at %s", entry.Domain, entry.Method, entry.ResumeSite())
}
