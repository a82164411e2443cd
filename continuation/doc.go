// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package continuation keeps the per-hart stack of resume points used
// to unwind a failing cross-domain call back to its boundary.
//
// Every proxied call pushes a [Continuation] before it enters the
// callee and pops it when the callee returns. If the callee panics,
// the proxy's recovery handler truncates the stack back to the depth
// it recorded at entry and invokes the popped entry's Resume function,
// which produces the value the caller observes in place of the
// callee's result. Execution continues in the caller as if the call
// had returned an error; nothing above the boundary unwinds.
//
// The stack depth therefore equals the current cross-domain nesting
// depth on that hart whenever no push or pop is in progress, including
// after a call faults partway through.
//
// A [Hart] is a logical hardware thread. Harts are created up front
// with [NewHarts] and bound to a call chain through its context with
// [WithHart]. Callers that do no hart bookkeeping get a transient hart
// from [Ensure], which keeps the library usable from ordinary
// goroutines and tests.
package continuation
