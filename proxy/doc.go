// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxy puts a liveness-checked trampoline in front of every
// domain instance.
//
// [Proxy] is a generic wrapper parameterized over one domain interface.
// Every method call goes through [Proxy.Invoke] (or the generic
// [Call], [CallMove], and [CallLend] helpers), which:
//
//  1. refuses the call with a [*domain.CrashError] if the domain is
//     inactive, without touching the implementation;
//  2. pushes a continuation onto the calling hart's stack;
//  3. forwards to the current implementation instance, moving or
//     lending any restricted references;
//  4. if the implementation panics, recovers at this boundary,
//     deactivates the domain, reports a crash record, truncates the
//     continuation stack back to the call's entry depth, and returns
//     the continuation's resume result (a crash error) to the caller;
//  5. on an ordinary return, pops the continuation and, if the result
//     is a crash error, checks liveness again so the caller sees this
//     domain's crash rather than a nested one's.
//
// No panic raised inside a domain ever propagates into its caller.
// A panic from an instance that a restart has already replaced is
// reported to its caller but leaves the replacement active.
//
// The typed proxies in this package ([BlockDeviceProxy],
// [SchedulerProxy], and one per kind) are thin forwarding shells over
// Proxy; [Wrap] builds the right one for a [domain.Kind]. None of them
// contain liveness logic of their own.
//
// # Restart
//
// Init calls are recorded. [Proxy.Restart] obtains a fresh instance
// from the proxy's [Reloader], replays the recorded Init on it, swaps
// it in, and reactivates the proxy. A failed restart leaves the proxy
// in [crash.Failed]. Previous instances are retained rather than
// dropped, since shared data they produced may still be referenced.
//
// Restart policy is not the proxy's business: it never restarts on its
// own. Wrappers that want bounded retry (the shadow-block domain) ask
// for it explicitly.
package proxy
