// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sheap

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"sync"
	"testing"
)

func mustAlloc(t *testing.T, heap *Heap, size int64, owner uint64) *Allocation {
	t.Helper()
	allocation, err := heap.Alloc(Layout{Size: size, Align: 8}, "test", owner)
	if err != nil {
		t.Fatalf("Alloc(%d): %v", size, err)
	}
	return allocation
}

func TestAllocDealloc(t *testing.T) {
	heap := New(Config{})
	allocation := mustAlloc(t, heap, 64, 7)

	if allocation.Owner() != 7 {
		t.Errorf("Owner() = %d, want 7", allocation.Owner())
	}
	if allocation.Borrows() != 0 {
		t.Errorf("Borrows() = %d, want 0", allocation.Borrows())
	}
	if stats := heap.Stats(); stats.Allocations != 1 || stats.Bytes != 64 {
		t.Errorf("Stats() = %+v, want 1 allocation of 64 bytes", stats)
	}

	if err := heap.Dealloc(allocation); err != nil {
		t.Fatalf("Dealloc: %v", err)
	}
	if allocation.Live() {
		t.Error("allocation still live after Dealloc")
	}
	if stats := heap.Stats(); stats.Allocations != 0 || stats.Bytes != 0 {
		t.Errorf("Stats() after Dealloc = %+v, want empty", stats)
	}

	if err := heap.Dealloc(allocation); !errors.Is(err, ErrNotAllocated) {
		t.Errorf("second Dealloc error = %v, want ErrNotAllocated", err)
	}
}

func TestDeallocRejectsForeignRecord(t *testing.T) {
	heap := New(Config{})
	other := New(Config{})
	mine := mustAlloc(t, heap, 8, 1)
	theirs := mustAlloc(t, other, 8, 1)

	if mine.ID() != theirs.ID() {
		t.Fatalf("expected both heaps to issue id %d, got %d", mine.ID(), theirs.ID())
	}
	if err := heap.Dealloc(theirs); !errors.Is(err, ErrMismatch) {
		t.Errorf("Dealloc(foreign) error = %v, want ErrMismatch", err)
	}
	if !mine.Live() {
		t.Error("foreign Dealloc freed the local allocation")
	}
}

func TestAllocExhausted(t *testing.T) {
	heap := New(Config{Capacity: 100})
	mustAlloc(t, heap, 60, 1)

	_, err := heap.Alloc(Layout{Size: 41, Align: 1}, "test", 1)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Alloc over capacity error = %v, want ErrExhausted", err)
	}
	if stats := heap.Stats(); stats.Allocations != 1 {
		t.Errorf("failed Alloc left %d allocations, want 1", stats.Allocations)
	}
	mustAlloc(t, heap, 40, 1)
}

func TestAllocHugeSizeExhausted(t *testing.T) {
	heap := New(Config{Capacity: 1024})
	mustAlloc(t, heap, 16, 1)

	_, err := heap.Alloc(Layout{Size: math.MaxInt64, Align: 1}, "test", 1)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Alloc(MaxInt64) error = %v, want ErrExhausted", err)
	}
	stats := heap.Stats()
	if stats.Bytes != 16 || stats.Allocations != 1 {
		t.Errorf("after refused Alloc: bytes = %d, allocations = %d, want 16 and 1", stats.Bytes, stats.Allocations)
	}
}

func TestAllocBadLayout(t *testing.T) {
	heap := New(Config{})
	tests := []struct {
		name   string
		layout Layout
	}{
		{"negative size", Layout{Size: -1, Align: 8}},
		{"zero align", Layout{Size: 8, Align: 0}},
		{"non power of two", Layout{Size: 8, Align: 12}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := heap.Alloc(test.layout, "test", 1); !errors.Is(err, ErrBadLayout) {
				t.Errorf("Alloc(%v) error = %v, want ErrBadLayout", test.layout, err)
			}
		})
	}
}

func TestDeallocRefusesWhileBorrowed(t *testing.T) {
	heap := New(Config{})
	allocation := mustAlloc(t, heap, 16, 1)

	if err := heap.Borrow(allocation); err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if err := heap.Dealloc(allocation); !errors.Is(err, ErrBorrowed) {
		t.Fatalf("Dealloc while borrowed error = %v, want ErrBorrowed", err)
	}
	if !allocation.Live() {
		t.Fatal("refused Dealloc still freed the allocation")
	}
	if err := heap.Release(allocation); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := heap.Dealloc(allocation); err != nil {
		t.Fatalf("Dealloc after release: %v", err)
	}
	if err := heap.Borrow(allocation); !errors.Is(err, ErrNotAllocated) {
		t.Errorf("Borrow after free error = %v, want ErrNotAllocated", err)
	}
}

func TestReleaseNeverNegative(t *testing.T) {
	heap := New(Config{})
	allocation := mustAlloc(t, heap, 16, 1)

	if err := heap.Release(allocation); !errors.Is(err, ErrUnbalancedRelease) {
		t.Fatalf("Release with no borrow error = %v, want ErrUnbalancedRelease", err)
	}
	if allocation.borrows.Load() != 0 {
		t.Errorf("raw borrow count = %d after unbalanced release, want 0", allocation.borrows.Load())
	}
}

// TestBorrowInvariantRandomSequences drives random borrow, release,
// and dealloc sequences against a model count and checks that the
// count never goes negative and that Dealloc only succeeds at zero.
func TestBorrowInvariantRandomSequences(t *testing.T) {
	random := rand.New(rand.NewPCG(1, 2))
	for round := range 200 {
		heap := New(Config{})
		allocation := mustAlloc(t, heap, 8, 1)
		model := int64(0)
		freed := false

		for step := range 50 {
			switch random.IntN(3) {
			case 0:
				err := heap.Borrow(allocation)
				if freed {
					if !errors.Is(err, ErrNotAllocated) {
						t.Fatalf("round %d step %d: Borrow after free error = %v", round, step, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("round %d step %d: Borrow: %v", round, step, err)
				}
				model++
			case 1:
				err := heap.Release(allocation)
				if model == 0 {
					if !errors.Is(err, ErrUnbalancedRelease) {
						t.Fatalf("round %d step %d: Release at zero error = %v", round, step, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("round %d step %d: Release: %v", round, step, err)
				}
				model--
			case 2:
				err := heap.Dealloc(allocation)
				switch {
				case freed:
					if !errors.Is(err, ErrNotAllocated) {
						t.Fatalf("round %d step %d: double Dealloc error = %v", round, step, err)
					}
				case model == 0:
					if err != nil {
						t.Fatalf("round %d step %d: Dealloc at zero: %v", round, step, err)
					}
					freed = true
				default:
					if !errors.Is(err, ErrBorrowed) {
						t.Fatalf("round %d step %d: Dealloc at %d borrows error = %v", round, step, model, err)
					}
				}
			}

			if raw := allocation.borrows.Load(); raw < freedMarker {
				t.Fatalf("round %d step %d: raw borrow count %d", round, step, raw)
			}
			if !freed && allocation.Borrows() != model {
				t.Fatalf("round %d step %d: Borrows() = %d, model %d", round, step, allocation.Borrows(), model)
			}
		}
	}
}

func TestConcurrentBorrowRelease(t *testing.T) {
	heap := New(Config{})
	allocation := mustAlloc(t, heap, 64, 1)

	const workers = 16
	const iterations = 1000
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				if err := heap.Borrow(allocation); err != nil {
					t.Errorf("Borrow: %v", err)
					return
				}
				if allocation.Borrows() < 1 {
					t.Errorf("Borrows() = %d inside a borrow", allocation.Borrows())
				}
				if err := heap.Release(allocation); err != nil {
					t.Errorf("Release: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if allocation.Borrows() != 0 {
		t.Fatalf("Borrows() = %d after all workers returned, want 0", allocation.Borrows())
	}
	if err := heap.Dealloc(allocation); err != nil {
		t.Fatalf("Dealloc: %v", err)
	}
}

func TestTransfer(t *testing.T) {
	heap := New(Config{})
	allocation := mustAlloc(t, heap, 8, 1)

	if previous := heap.Transfer(allocation, 2); previous != 1 {
		t.Errorf("Transfer returned %d, want 1", previous)
	}
	if allocation.Owner() != 2 {
		t.Errorf("Owner() = %d, want 2", allocation.Owner())
	}
	if heap.OwnedBy(1) != 0 || heap.OwnedBy(2) != 1 {
		t.Errorf("OwnedBy(1)=%d OwnedBy(2)=%d, want 0 and 1", heap.OwnedBy(1), heap.OwnedBy(2))
	}
}

func TestFreeDomainOrphansBorrowed(t *testing.T) {
	heap := New(Config{})
	free := mustAlloc(t, heap, 32, 5)
	lent := mustAlloc(t, heap, 64, 5)
	foreign := mustAlloc(t, heap, 16, 6)

	if err := heap.Borrow(lent); err != nil {
		t.Fatalf("Borrow: %v", err)
	}

	report := heap.FreeDomain(5)
	if report.Freed != 1 || report.FreedBytes != 32 {
		t.Errorf("FreeDomain report = %+v, want 1 freed of 32 bytes", report)
	}
	if !reflect.DeepEqual(report.Orphaned, []ID{lent.ID()}) {
		t.Errorf("Orphaned = %v, want [%d]", report.Orphaned, lent.ID())
	}
	if free.Live() {
		t.Error("unborrowed allocation survived FreeDomain")
	}
	if !lent.Live() || !lent.Orphaned() {
		t.Error("borrowed allocation should stay live and be marked orphaned")
	}
	if !foreign.Live() {
		t.Error("FreeDomain freed another domain's allocation")
	}

	// The surviving holder can still finish with the orphan.
	if err := heap.Release(lent); err != nil {
		t.Fatalf("Release orphan: %v", err)
	}
	if stats := heap.Stats(); stats.Orphans != 1 {
		t.Errorf("Stats().Orphans = %d, want 1", stats.Orphans)
	}
	if err := heap.Dealloc(lent); err != nil {
		t.Fatalf("Dealloc orphan: %v", err)
	}
}

func TestReassign(t *testing.T) {
	heap := New(Config{})
	for range 3 {
		mustAlloc(t, heap, 8, 10)
	}
	mustAlloc(t, heap, 8, 11)

	if moved := heap.Reassign(10, 12); moved != 3 {
		t.Errorf("Reassign moved %d, want 3", moved)
	}
	if heap.OwnedBy(10) != 0 || heap.OwnedBy(12) != 3 || heap.OwnedBy(11) != 1 {
		t.Errorf("ownership after Reassign: 10=%d 11=%d 12=%d",
			heap.OwnedBy(10), heap.OwnedBy(11), heap.OwnedBy(12))
	}
	if report := heap.FreeDomain(10); report.Freed != 0 {
		t.Errorf("FreeDomain(10) after Reassign freed %d", report.Freed)
	}
}

func TestLookup(t *testing.T) {
	heap := New(Config{})
	allocation := mustAlloc(t, heap, 8, 1)

	found, ok := heap.Lookup(allocation.ID())
	if !ok || found != allocation {
		t.Fatalf("Lookup(%d) = %v, %v", allocation.ID(), found, ok)
	}
	if _, ok := heap.Lookup(allocation.ID() + 1); ok {
		t.Error("Lookup of unknown id succeeded")
	}
}
