// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fifo is a first-in first-out scheduler domain.
package fifo

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
)

// ImageName is the catalog name for this domain.
const ImageName = "fifo"

// Scheduler hands tasks out in the order they were added. The queued
// records are shared data owned by the scheduler; they move in with
// AddTask and are freed once FetchTask has copied them out.
type Scheduler struct {
	domain.Base

	mu    sync.Mutex
	queue []rref.RRef[domain.TaskInfo]
}

// New returns an empty scheduler with the given id.
func New(id uint64) *Scheduler {
	return &Scheduler{Base: domain.Base{ID: id}}
}

// Entry is the domain entry point.
func Entry(env domain.Env) (domain.Basic, error) {
	return New(env.ID), nil
}

func (s *Scheduler) Init(context.Context) error { return nil }

func (s *Scheduler) AddTask(_ context.Context, info rref.RRef[domain.TaskInfo]) error {
	task := info.Get()
	if task == nil {
		return domain.NewOpError("add_task", unix.EINVAL)
	}
	task.State = domain.TaskReady

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, info)
	return nil
}

func (s *Scheduler) FetchTask(_ context.Context, scratch rref.RRef[domain.TaskInfo]) (rref.RRef[domain.TaskInfo], error) {
	out := scratch.Get()
	if out == nil {
		return scratch, domain.NewOpError("fetch_task", unix.EINVAL)
	}

	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		*out = domain.TaskInfo{TID: domain.NoTask}
		return scratch, nil
	}
	next := s.queue[0]
	s.queue[0] = rref.RRef[domain.TaskInfo]{}
	s.queue = s.queue[1:]
	s.mu.Unlock()

	*out = *next.Get()
	out.State = domain.TaskRunning
	if err := next.Free(); err != nil {
		return scratch, err
	}
	return scratch, nil
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
