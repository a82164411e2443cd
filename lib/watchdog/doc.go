// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog records a domain hot update while it is in
// progress, so a daemon that dies in the middle of one can tell on the
// next start.
//
// The loader writes a [State] before swapping the implementation
// behind a registry name and clears it once the swap and the shared
// data re-tagging have both completed. On boot, [Check] finds a state
// file left behind by an interrupted update; anything older than the
// caller's max age is ignored, since it belongs to an unrelated
// earlier run.
//
// Files are written atomically (temporary file, fsync, rename, parent
// directory fsync), so a reader never sees a partial state.
package watchdog
