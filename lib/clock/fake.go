// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves on Advance. It is safe
// for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time
	waiters []*waiter
}

// waiter is a pending After or ticker. Tickers have a non-zero
// interval and are rescheduled after each fire.
type waiter struct {
	deadline time.Time
	interval time.Duration
	channel  chan time.Time
	stopped  bool
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once Advance reaches d past
// the current time.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	channel := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.add(&waiter{deadline: c.now.Add(d), channel: channel})
	return channel
}

// NewTicker returns a ticker that fires each time Advance crosses a
// multiple of d.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	channel := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	ticker := &waiter{deadline: c.now.Add(d), interval: d, channel: channel}
	c.add(ticker)
	return &Ticker{C: channel, stop: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		ticker.stopped = true
		c.changed.Broadcast()
	}}
}

// add must be called with c.mu held.
func (c *FakeClock) add(w *waiter) {
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()
}

// Advance moves time forward by d and fires every waiter whose
// deadline is reached, earliest first. A ticker spanning several
// intervals fires once per interval; ticks that find C full are
// dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)

	for {
		due := c.nextDue()
		if due == nil {
			break
		}
		select {
		case due.channel <- due.deadline:
		default:
		}
		if due.interval > 0 {
			due.deadline = due.deadline.Add(due.interval)
		} else {
			due.stopped = true
		}
	}

	c.waiters = slices.DeleteFunc(c.waiters, func(w *waiter) bool { return w.stopped })
	c.changed.Broadcast()
}

// nextDue returns the live waiter with the earliest deadline not after
// now, or nil. Must be called with c.mu held.
func (c *FakeClock) nextDue() *waiter {
	var earliest *waiter
	for _, w := range c.waiters {
		if w.stopped || w.deadline.After(c.now) {
			continue
		}
		if earliest == nil || w.deadline.Before(earliest.deadline) {
			earliest = w
		}
	}
	return earliest
}

// WaitForTimers blocks until at least n waiters are pending. Call it
// before Advance when the code under test registers its timer from
// another goroutine.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pending() < n {
		c.changed.Wait()
	}
}

// Pending returns how many waiters have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending()
}

func (c *FakeClock) pending() int {
	count := 0
	for _, w := range c.waiters {
		if !w.stopped {
			count++
		}
	}
	return count
}
