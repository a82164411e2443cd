// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rref

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/bureau-foundation/partition/sheap"
)

// ErrInvalid is returned by operations on a zero or freed reference.
var ErrInvalid = errors.New("invalid restricted reference")

// Ref is the ownership surface shared by RRef and RRefVec. The proxy
// layer uses it to move and lend arguments without knowing their
// element types.
type Ref interface {
	Allocation() *sheap.Allocation
	Owner() uint64
	MoveTo(owner uint64) uint64
	Borrow() (release func(), err error)
}

// RRef is a handle to a single value of type T in the shared heap.
// The zero RRef is invalid. Copying an RRef copies the handle, not the
// value; all copies observe the same owner and borrow count.
type RRef[T any] struct {
	heap  *sheap.Heap
	alloc *sheap.Allocation
	value *T
}

// New allocates a T in heap owned by owner and initializes it with
// value. T must be a restricted type.
func New[T any](heap *sheap.Heap, owner uint64, value T) (RRef[T], error) {
	if err := sheap.CheckRestricted(reflect.TypeFor[T]()); err != nil {
		return RRef[T]{}, err
	}
	alloc, err := heap.Alloc(sheap.LayoutOf[T](), sheap.TagOf[T](), owner)
	if err != nil {
		return RRef[T]{}, fmt.Errorf("allocating %s: %w", sheap.TagOf[T](), err)
	}
	stored := new(T)
	*stored = value
	return RRef[T]{heap: heap, alloc: alloc, value: stored}, nil
}

// Get returns a pointer to the referenced value, or nil if the
// reference is zero or has been freed.
func (r RRef[T]) Get() *T {
	if !r.Valid() {
		return nil
	}
	return r.value
}

// Valid reports whether the reference points at a live allocation.
func (r RRef[T]) Valid() bool {
	return r.alloc != nil && r.alloc.Live()
}

// ID returns the allocation id, or zero for an invalid reference.
func (r RRef[T]) ID() sheap.ID {
	if r.alloc == nil {
		return 0
	}
	return r.alloc.ID()
}

// Allocation returns the underlying heap record.
func (r RRef[T]) Allocation() *sheap.Allocation { return r.alloc }

// Owner returns the domain currently accountable for releasing the
// value.
func (r RRef[T]) Owner() uint64 {
	if r.alloc == nil {
		return 0
	}
	return r.alloc.Owner()
}

// Borrows returns the number of calls currently lending the value.
func (r RRef[T]) Borrows() int64 {
	if r.alloc == nil {
		return 0
	}
	return r.alloc.Borrows()
}

// MoveTo transfers ownership to owner and returns the previous owner.
func (r RRef[T]) MoveTo(owner uint64) uint64 {
	if r.alloc == nil {
		return 0
	}
	return r.heap.Transfer(r.alloc, owner)
}

// Borrow lends the value for the duration of a call. The returned
// function ends the borrow; calling it more than once is a no-op.
func (r RRef[T]) Borrow() (func(), error) {
	if r.alloc == nil {
		return nil, ErrInvalid
	}
	return borrow(r.heap, r.alloc)
}

// Free releases the value back to the heap. It fails with
// [sheap.ErrBorrowed] while the value is lent out.
func (r RRef[T]) Free() error {
	if r.alloc == nil {
		return ErrInvalid
	}
	return r.heap.Dealloc(r.alloc)
}

func (r RRef[T]) String() string {
	if r.alloc == nil {
		return "rref(nil)"
	}
	return fmt.Sprintf("rref(%s)", r.alloc)
}

func borrow(heap *sheap.Heap, alloc *sheap.Allocation) (func(), error) {
	if err := heap.Borrow(alloc); err != nil {
		return nil, err
	}
	var released atomic.Bool
	return func() {
		if released.Swap(true) {
			return
		}
		// Dealloc refuses while this borrow is outstanding, so the
		// record is still live and the count is at least one.
		_ = heap.Release(alloc)
	}, nil
}

// Lend borrows every reference in refs and returns a single function
// that releases all of them. If any borrow fails, the ones already
// taken are released and the error is returned.
func Lend(refs ...Ref) (func(), error) {
	releases := make([]func(), 0, len(refs))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, ref := range refs {
		release, err := ref.Borrow()
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
