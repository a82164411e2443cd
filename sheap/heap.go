// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sheap

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrExhausted is returned by Alloc when the request would exceed
	// the heap's capacity. The heap never retries with a different
	// size; the caller decides what to do.
	ErrExhausted = errors.New("shared heap exhausted")

	// ErrBadLayout is returned for layouts with a negative size or a
	// non-power-of-two alignment.
	ErrBadLayout = errors.New("invalid allocation layout")

	// ErrUnrestrictedType is returned when a type that can hold
	// references into private memory is placed in the shared heap.
	ErrUnrestrictedType = errors.New("type cannot cross a domain boundary")

	// ErrNotAllocated is returned when an operation names an
	// allocation that was never made or has already been freed.
	ErrNotAllocated = errors.New("allocation not live")

	// ErrMismatch is returned by Dealloc when the allocation record
	// stored under the id is not the one the caller holds.
	ErrMismatch = errors.New("allocation record does not match pointer")

	// ErrBorrowed is returned by Dealloc while references are lent out.
	ErrBorrowed = errors.New("allocation is borrowed")

	// ErrUnbalancedRelease is returned by Release when there is no
	// outstanding borrow to release.
	ErrUnbalancedRelease = errors.New("release without matching borrow")
)

// KernelDomain is the owner id of allocations made by the host
// itself rather than by a loaded domain.
const KernelDomain uint64 = 0

// ID identifies an allocation for its whole lifetime. IDs are never
// reused within a Heap.
type ID uint64

// freedMarker is the borrow-count value of a deallocated record.
// Packing "freed" into the counter lets Borrow and Dealloc race with
// a single compare-and-swap each: a borrow can only start from a
// non-negative count, and a free can only happen from exactly zero.
const freedMarker = -1

// Allocation is the metadata record of one shared-heap allocation.
// Records are shared by pointer between the heap and every reference
// to the allocation, so owner and borrow updates are visible to all
// holders immediately.
type Allocation struct {
	id     ID
	layout Layout
	tag    TypeTag

	owner   atomic.Uint64
	borrows atomic.Int64

	// orphaned is set by FreeDomain when the owner went away while
	// the allocation was still lent out.
	orphaned atomic.Bool
}

// ID returns the allocation id.
func (a *Allocation) ID() ID { return a.id }

// Layout returns the layout requested at allocation time.
func (a *Allocation) Layout() Layout { return a.layout }

// Type returns the type tag of the stored value.
func (a *Allocation) Type() TypeTag { return a.tag }

// Owner returns the id of the domain accountable for releasing the
// allocation.
func (a *Allocation) Owner() uint64 { return a.owner.Load() }

// Borrows returns the number of outstanding lends. Never negative.
func (a *Allocation) Borrows() int64 {
	count := a.borrows.Load()
	if count < 0 {
		return 0
	}
	return count
}

// Live reports whether the allocation has not been freed.
func (a *Allocation) Live() bool { return a.borrows.Load() != freedMarker }

// Orphaned reports whether the allocation outlived its owner.
func (a *Allocation) Orphaned() bool { return a.orphaned.Load() }

func (a *Allocation) String() string {
	return fmt.Sprintf("allocation %d (%s, %s, owner=%d, borrows=%d)",
		a.id, a.tag, a.layout, a.Owner(), a.Borrows())
}

// Config holds the parameters for a Heap.
type Config struct {
	// Capacity is the maximum number of bytes live at once. Zero or
	// negative means unlimited.
	Capacity int64

	// Logger receives allocation traces (debug) and orphan warnings.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Heap is the process-wide shared-heap allocator. It is safe for
// concurrent use. The record table is guarded by a mutex; owner and
// borrow updates on individual allocations are lock-free.
type Heap struct {
	mu          sync.Mutex
	allocations map[ID]*Allocation
	used        int64
	nextID      ID

	capacity int64
	logger   *slog.Logger
}

// New creates an empty heap.
func New(config Config) *Heap {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Heap{
		allocations: make(map[ID]*Allocation),
		capacity:    config.Capacity,
		logger:      logger,
	}
}

// Alloc records a new allocation of the given layout, owned by owner,
// with a borrow count of zero. It fails with ErrExhausted when the
// heap's capacity would be exceeded.
func (h *Heap) Alloc(layout Layout, tag TypeTag, owner uint64) (*Allocation, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.capacity > 0 && layout.Size > h.capacity-h.used {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrExhausted, layout.Size, h.used, h.capacity)
	}

	h.nextID++
	allocation := &Allocation{
		id:     h.nextID,
		layout: layout,
		tag:    tag,
	}
	allocation.owner.Store(owner)
	h.allocations[allocation.id] = allocation
	h.used += layout.Size

	h.logger.Debug("shared heap alloc",
		"id", allocation.id,
		"type", tag,
		"size", layout.Size,
		"owner", owner,
	)
	return allocation, nil
}

// Dealloc frees an allocation. The record stored under the
// allocation's id must be the caller's record, and the borrow count
// must be exactly zero; otherwise nothing is freed.
func (h *Heap) Dealloc(allocation *Allocation) error {
	if allocation == nil {
		return ErrNotAllocated
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	stored, ok := h.allocations[allocation.id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotAllocated, allocation.id)
	}
	if stored != allocation {
		return fmt.Errorf("%w: id %d", ErrMismatch, allocation.id)
	}
	if !allocation.borrows.CompareAndSwap(0, freedMarker) {
		return fmt.Errorf("%w: id %d has %d outstanding borrows",
			ErrBorrowed, allocation.id, allocation.Borrows())
	}
	h.removeLocked(allocation)

	h.logger.Debug("shared heap dealloc", "id", allocation.id)
	return nil
}

// removeLocked drops a freed record from the table. Caller holds h.mu
// and has already moved the borrow count to freedMarker.
func (h *Heap) removeLocked(allocation *Allocation) {
	delete(h.allocations, allocation.id)
	h.used -= allocation.layout.Size
}

// Borrow increments the borrow count of a live allocation. Each
// successful Borrow must be paired with exactly one Release.
func (h *Heap) Borrow(allocation *Allocation) error {
	for {
		count := allocation.borrows.Load()
		if count == freedMarker {
			return fmt.Errorf("%w: id %d", ErrNotAllocated, allocation.id)
		}
		if allocation.borrows.CompareAndSwap(count, count+1) {
			return nil
		}
	}
}

// Release decrements the borrow count. It refuses to go below zero.
func (h *Heap) Release(allocation *Allocation) error {
	for {
		count := allocation.borrows.Load()
		if count <= 0 {
			return fmt.Errorf("%w: id %d", ErrUnbalancedRelease, allocation.id)
		}
		if allocation.borrows.CompareAndSwap(count, count-1) {
			return nil
		}
	}
}

// Transfer re-tags the owner of an allocation and returns the
// previous owner.
func (h *Heap) Transfer(allocation *Allocation, owner uint64) uint64 {
	previous := allocation.owner.Swap(owner)
	if previous != owner {
		h.logger.Debug("shared heap transfer",
			"id", allocation.id,
			"from", previous,
			"to", owner,
		)
	}
	return previous
}

// Lookup returns the live allocation with the given id.
func (h *Heap) Lookup(id ID) (*Allocation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	allocation, ok := h.allocations[id]
	return allocation, ok
}

// FreeReport summarizes what FreeDomain released.
type FreeReport struct {
	Owner      uint64 `json:"owner"`
	Freed      int    `json:"freed"`
	FreedBytes int64  `json:"freed_bytes"`
	Orphaned   []ID   `json:"orphaned,omitempty"`
}

// FreeDomain releases every allocation owned by owner. Allocations
// with outstanding borrows are left allocated and marked orphaned:
// another domain is still reading them, and a dangling reference is
// worse than a leak.
func (h *Heap) FreeDomain(owner uint64) FreeReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := FreeReport{Owner: owner}
	for _, allocation := range h.ownedLocked(owner) {
		if allocation.borrows.CompareAndSwap(0, freedMarker) {
			h.removeLocked(allocation)
			report.Freed++
			report.FreedBytes += allocation.layout.Size
			continue
		}
		allocation.orphaned.Store(true)
		report.Orphaned = append(report.Orphaned, allocation.id)
	}

	if len(report.Orphaned) > 0 {
		h.logger.Warn("shared data orphaned by departing domain",
			"owner", owner,
			"orphaned", len(report.Orphaned),
			"freed", report.Freed,
		)
	} else if report.Freed > 0 {
		h.logger.Info("freed domain shared data",
			"owner", owner,
			"freed", report.Freed,
			"bytes", report.FreedBytes,
		)
	}
	return report
}

// Reassign re-tags every allocation owned by from to be owned by to,
// returning how many were moved. Used when a domain is replaced by a
// newer implementation that inherits its shared data instead of
// freeing it.
func (h *Heap) Reassign(from, to uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	moved := 0
	for _, allocation := range h.ownedLocked(from) {
		if allocation.owner.CompareAndSwap(from, to) {
			moved++
		}
	}
	if moved > 0 {
		h.logger.Info("reassigned domain shared data",
			"from", from,
			"to", to,
			"count", moved,
		)
	}
	return moved
}

// ownedLocked returns the allocations owned by owner in id order.
// Caller holds h.mu.
func (h *Heap) ownedLocked(owner uint64) []*Allocation {
	var owned []*Allocation
	for _, allocation := range h.allocations {
		if allocation.Owner() == owner {
			owned = append(owned, allocation)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].id < owned[j].id })
	return owned
}

// Stats is a point-in-time summary of heap usage.
type Stats struct {
	Allocations int   `json:"allocations"`
	Bytes       int64 `json:"bytes"`
	Capacity    int64 `json:"capacity"`
	Orphans     int   `json:"orphans"`
	Borrowed    int   `json:"borrowed"`
}

// Stats returns current usage.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := Stats{
		Allocations: len(h.allocations),
		Bytes:       h.used,
		Capacity:    h.capacity,
	}
	for _, allocation := range h.allocations {
		if allocation.Orphaned() {
			stats.Orphans++
		}
		if allocation.Borrows() > 0 {
			stats.Borrowed++
		}
	}
	return stats
}

// OwnedBy returns the number of live allocations owned by owner.
func (h *Heap) OwnedBy(owner uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ownedLocked(owner))
}
