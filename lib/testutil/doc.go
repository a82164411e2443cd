// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds test helpers shared across packages.
//
// [RequireReceive], [RequireSend] and [RequireClosed] wrap the select
// with a time.After fallback, so a missed signal fails the test with a
// message instead of hanging it. They are the only place tests wait on
// the wall clock; everything else uses a fake clock.
//
// [SocketDir] returns a directory short enough for Unix socket paths.
//
// All helpers call t.Fatalf on failure.
package testutil
