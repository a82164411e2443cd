// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sheap is the shared heap: the single allocator behind every
// value that crosses a domain boundary.
//
// Domains never hand each other Go pointers to their private state.
// Anything passed across a boundary is allocated here and tagged with
// two pieces of metadata: the id of the domain accountable for
// releasing it (the owner) and a borrow count tracking how many calls
// currently hold a lent reference to it. The [rref] package builds the
// typed handles on top of these records.
//
// # Ownership Rules
//
//   - [Heap.Transfer] re-tags the owner. Passing a reference by value
//     into another domain is a transfer.
//   - [Heap.Borrow] and [Heap.Release] bracket a lend. The count is
//     updated atomically because several harts may lend the same
//     allocation at once, and it can never be observed negative.
//   - [Heap.Dealloc] succeeds only when the borrow count is exactly
//     zero. There is no implicit collection across the boundary: the
//     owning side frees explicitly.
//
// # Crash Path
//
// When a domain crashes or is replaced, [Heap.FreeDomain] releases
// everything it owned. Allocations that are still lent out are NOT
// freed: a surviving domain holds a live reference into them, and
// freeing would leave that reference dangling. They are marked
// orphaned instead and stay allocated until their holder releases and
// deallocates them, or forever. A small bounded leak is the accepted
// price for never invalidating memory out from under a survivor.
//
// A Heap is explicit process-wide state. Create one with [New] at
// startup and pass it to everything that allocates; there is no
// package-level instance.
package sheap
