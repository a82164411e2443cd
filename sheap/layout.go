// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sheap

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// Layout is the size and alignment of an allocation in bytes. The
// heap accounts capacity by Size; Align is validated and recorded for
// diagnostics.
type Layout struct {
	Size  int64 `json:"size"`
	Align int64 `json:"align"`
}

// Validate reports whether the layout is usable: a non-negative size
// and a power-of-two alignment.
func (l Layout) Validate() error {
	if l.Size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrBadLayout, l.Size)
	}
	if l.Align <= 0 || l.Align&(l.Align-1) != 0 {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrBadLayout, l.Align)
	}
	return nil
}

func (l Layout) String() string {
	return fmt.Sprintf("size=%d align=%d", l.Size, l.Align)
}

// LayoutOf returns the natural layout of T.
func LayoutOf[T any]() Layout {
	var zero T
	return Layout{
		Size:  int64(unsafe.Sizeof(zero)),
		Align: int64(unsafe.Alignof(zero)),
	}
}

// ArrayLayout returns the layout of n contiguous elements of T.
func ArrayLayout[T any](n int) (Layout, error) {
	if n < 0 {
		return Layout{}, fmt.Errorf("%w: negative element count %d", ErrBadLayout, n)
	}
	element := LayoutOf[T]()
	if element.Size > 0 && int64(n) > (1<<62)/element.Size {
		return Layout{}, fmt.Errorf("%w: %d elements of %d bytes overflows", ErrBadLayout, n, element.Size)
	}
	return Layout{Size: element.Size * int64(n), Align: element.Align}, nil
}

// TypeTag names the Go type stored in an allocation.
type TypeTag string

// TagOf returns the type tag for T.
func TagOf[T any]() TypeTag {
	return TypeTag(reflect.TypeFor[T]().String())
}

// restrictedCache memoizes CheckRestricted results per type. The walk
// is recursive over struct fields and array elements, and the same
// handful of buffer types are allocated constantly.
var restrictedCache sync.Map // reflect.Type -> error

// CheckRestricted reports whether values of type t may live in the
// shared heap. A restricted type holds no references into any
// domain's private memory: no pointers, slices, maps, channels,
// functions, interfaces, or unsafe pointers, at any depth. Strings
// are permitted because they are immutable.
//
// The check keeps a callee from smuggling a pointer to its own state
// back to the caller inside a shared buffer.
func CheckRestricted(t reflect.Type) error {
	if cached, ok := restrictedCache.Load(t); ok {
		if cached == nil {
			return nil
		}
		return cached.(error)
	}
	err := checkRestricted(t, t)
	restrictedCache.Store(t, err)
	return err
}

func checkRestricted(root, t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return nil
	case reflect.Array:
		return checkRestricted(root, t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if err := checkRestricted(root, t.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s contains %s", ErrUnrestrictedType, root, t.Kind())
	}
}
