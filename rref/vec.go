// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rref

import (
	"fmt"
	"reflect"

	"github.com/bureau-foundation/partition/sheap"
)

// RRefVec is a handle to a runtime-sized array of T in the shared
// heap. The length is fixed at allocation.
type RRefVec[T any] struct {
	heap  *sheap.Heap
	alloc *sheap.Allocation
	data  []T
}

// NewVec allocates n elements, each set to initial.
func NewVec[T any](heap *sheap.Heap, owner uint64, initial T, n int) (RRefVec[T], error) {
	vec, err := allocVec[T](heap, owner, n)
	if err != nil {
		return RRefVec[T]{}, err
	}
	for i := range vec.data {
		vec.data[i] = initial
	}
	return vec, nil
}

// VecFromSlice allocates a vector holding a copy of source.
func VecFromSlice[T any](heap *sheap.Heap, owner uint64, source []T) (RRefVec[T], error) {
	vec, err := allocVec[T](heap, owner, len(source))
	if err != nil {
		return RRefVec[T]{}, err
	}
	copy(vec.data, source)
	return vec, nil
}

func allocVec[T any](heap *sheap.Heap, owner uint64, n int) (RRefVec[T], error) {
	if err := sheap.CheckRestricted(reflect.TypeFor[T]()); err != nil {
		return RRefVec[T]{}, err
	}
	layout, err := sheap.ArrayLayout[T](n)
	if err != nil {
		return RRefVec[T]{}, err
	}
	tag := sheap.TypeTag(fmt.Sprintf("[%d]%s", n, sheap.TagOf[T]()))
	alloc, err := heap.Alloc(layout, tag, owner)
	if err != nil {
		return RRefVec[T]{}, fmt.Errorf("allocating %s: %w", tag, err)
	}
	return RRefVec[T]{heap: heap, alloc: alloc, data: make([]T, n)}, nil
}

// Slice returns the elements, or nil if the vector is zero or freed.
// The slice aliases the shared allocation.
func (v RRefVec[T]) Slice() []T {
	if !v.Valid() {
		return nil
	}
	return v.data
}

// Len returns the element count.
func (v RRefVec[T]) Len() int { return len(v.data) }

// Valid reports whether the vector points at a live allocation.
func (v RRefVec[T]) Valid() bool {
	return v.alloc != nil && v.alloc.Live()
}

// ID returns the allocation id, or zero for an invalid vector.
func (v RRefVec[T]) ID() sheap.ID {
	if v.alloc == nil {
		return 0
	}
	return v.alloc.ID()
}

// Allocation returns the underlying heap record.
func (v RRefVec[T]) Allocation() *sheap.Allocation { return v.alloc }

// Owner returns the domain currently accountable for the vector.
func (v RRefVec[T]) Owner() uint64 {
	if v.alloc == nil {
		return 0
	}
	return v.alloc.Owner()
}

// Borrows returns the number of calls currently lending the vector.
func (v RRefVec[T]) Borrows() int64 {
	if v.alloc == nil {
		return 0
	}
	return v.alloc.Borrows()
}

// MoveTo transfers ownership to owner and returns the previous owner.
func (v RRefVec[T]) MoveTo(owner uint64) uint64 {
	if v.alloc == nil {
		return 0
	}
	return v.heap.Transfer(v.alloc, owner)
}

// Borrow lends the vector for the duration of a call.
func (v RRefVec[T]) Borrow() (func(), error) {
	if v.alloc == nil {
		return nil, ErrInvalid
	}
	return borrow(v.heap, v.alloc)
}

// Free releases the vector back to the heap.
func (v RRefVec[T]) Free() error {
	if v.alloc == nil {
		return ErrInvalid
	}
	return v.heap.Dealloc(v.alloc)
}

func (v RRefVec[T]) String() string {
	if v.alloc == nil {
		return "rrefvec(nil)"
	}
	return fmt.Sprintf("rrefvec(%s)", v.alloc)
}
