// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rref provides restricted references: typed handles into the
// shared heap that are the only way data crosses a domain boundary.
//
// [RRef] holds a single value; [RRefVec] holds a runtime-sized array.
// Both wrap an [sheap.Allocation] and expose its ownership operations
// in typed form. The distinction between moving and lending is carried
// by how a reference is passed to a domain method:
//
//   - By value (RRef[T]): ownership moves to the callee. The proxy
//     re-tags the owner to the callee's domain id for the duration of
//     the call, and the callee hands a reference back in its result.
//   - By pointer (*RRef[T]): the callee borrows. The proxy brackets the
//     call with [RRef.Borrow] and the returned release function, so the
//     borrow count reflects exactly the calls currently using it.
//
// Only restricted types may be stored: values with no pointers,
// slices, maps, channels, functions, or interfaces at any depth (see
// [sheap.CheckRestricted]). A domain therefore cannot leak a pointer to
// its private state through a shared buffer, and the buffer stays
// meaningful after the domain that filled it is gone.
//
// An RRef must not be retained past the call that produced it unless
// ownership was transferred to the retaining domain.
package rref
