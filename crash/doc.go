// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package crash turns a panic caught at a domain boundary into a
// diagnostic [Record] and delivers it to [Reporter]s.
//
// The proxy layer recovers every panic raised inside a domain method,
// calls [Capture] from its deferred handler, fills in the identity of
// the domain and method, and hands the record to its reporter before
// resuming the caller. Reporters are the shared diagnostics channel:
// [LogReporter] writes structured log entries, the journal package
// persists records in SQLite, and [Recorder] keeps them in memory for
// tests and the management surface.
//
// [State] is the per-domain lifecycle the proxy drives:
//
//	Active --panic--> Inactive --restart ok--> Active
//	                  Inactive --restart failed--> Failed
//
// Failed is terminal for that instance; only installing a replacement
// implementation (a hot update) leaves it.
package crash
