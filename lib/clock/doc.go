// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time source so registry timestamps,
// crash record times, update watchdog ages and journal pruning can be
// tested without sleeping.
//
// Components take a Clock in their Config and default to Real:
//
//	registry.New(registry.Config{Clock: clock.Fake(epoch)})
//
// A FakeClock stands still until Advance. Code that starts a ticker in
// its own goroutine races the test's Advance, so tests call
// WaitForTimers first:
//
//	go k.RunMaintenance(ctx, time.Hour)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Hour)
package clock
