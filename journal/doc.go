// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal persists domain crash records in SQLite so they
// survive a daemon restart and can be listed from the management
// socket.
//
// A [Journal] is a [crash.Reporter]: install it alongside the log
// reporter and every panic captured at a domain boundary becomes a row
// in the crashes table. Backtraces are stored as newline-joined text,
// compressed with zstd or LZ4 when that pays off. The compression tag
// and original size are stored next to the blob so reads can verify
// the decoded length.
//
// Report never fails the caller: the crash path must not block on or
// be derailed by storage, so write errors are logged and dropped. Use
// [Journal.Append] when the caller needs the error.
package journal
