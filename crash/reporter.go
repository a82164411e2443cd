// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crash

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Reporter receives crash records. Report is called synchronously on
// the crashing hart before the caller resumes, so implementations
// should not block for long and must not call back into the crashed
// domain.
type Reporter interface {
	Report(ctx context.Context, record Record)
}

// LogReporter writes each record to a structured logger at error
// level.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(ctx context.Context, record Record) {
	logger := r.Logger
	if logger == nil {
		return
	}
	logger.ErrorContext(ctx, "domain crashed",
		"domain", record.Domain,
		"domain_id", record.DomainID,
		"kind", record.Kind,
		"method", record.Method,
		"message", record.Message,
		"location", record.Location,
		"hart", record.Hart,
		"resume_site", record.ResumeSite,
	)
	for i, frame := range record.Backtrace {
		logger.DebugContext(ctx, "backtrace",
			"domain", record.Domain,
			"frame", i,
			"at", frame,
		)
	}
}

// Multi fans a record out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, record Record) {
	for _, reporter := range m {
		if reporter != nil {
			reporter.Report(ctx, record)
		}
	}
}

// Recorder keeps reported records in memory, bounded to the most
// recent Limit entries when Limit is positive. The zero Recorder keeps
// everything.
type Recorder struct {
	Limit int

	mu      sync.Mutex
	records []Record
	notify  chan struct{}
}

func (r *Recorder) Report(_ context.Context, record Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	if r.Limit > 0 && len(r.records) > r.Limit {
		r.records = slices.Delete(r.records, 0, len(r.records)-r.Limit)
	}
	if r.notify != nil {
		close(r.notify)
		r.notify = nil
	}
}

// Records returns a copy of the stored records, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.records)
}

// Len returns the number of stored records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// ForDomain returns the stored records for the named domain.
func (r *Recorder) ForDomain(name string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Record
	for _, record := range r.records {
		if record.Domain == name {
			matched = append(matched, record)
		}
	}
	return matched
}

// Next returns a channel closed by the next Report.
func (r *Recorder) Next() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notify == nil {
		r.notify = make(chan struct{})
	}
	return r.notify
}
