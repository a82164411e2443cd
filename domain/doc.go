// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package domain defines the contracts every domain implements and the
// data model shared by the proxy layer, the registry, and the loader.
//
// A domain is an independently built unit implementing exactly one
// capability interface. Each interface composes two things:
//
//   - [Basic]: DomainID and IsActive, the liveness capability every
//     domain has.
//   - A domain-specific capability set, for example block I/O on
//     [BlockDevice] or add/fetch on [Scheduler]. Device kinds also
//     embed [DeviceBase] for interrupt handling.
//
// The set of kinds is closed ([Kind]) and each kind has a stable wire
// value. A [Handle] is the tagged union the registry stores: a kind
// plus a value known to satisfy that kind's interface.
//
// # Errors
//
// Every fallible method distinguishes two classes of failure. A crash
// ([ErrDomainCrash], usually as a [*CrashError]) means the callee is no
// longer active; only crash errors ever trigger restart logic.
// Operational errors (bad argument, unsupported operation, I/O
// failure) are [unix.Errno] values, usually wrapped in an [*OpError]
// naming the failing operation, and are returned as-is. [Errno] folds
// any error into the POSIX-like number space the management surface
// reports.
//
// # Data Crossing a Boundary
//
// Method arguments and results are either plain scalars or restricted
// references from package rref. An rref.RRef passed by value moves
// ownership to the callee; a pointer to one lends it for the call.
//
// # Entry ABI
//
// [Entry] is the function every domain image exposes to the loader. It
// receives an [Env] carrying the core function table, the assigned
// domain id, the shared heap, and kind-specific [Args], and returns
// the unwrapped instance. The loader wraps it in a proxy before anyone
// else can see it.
package domain
