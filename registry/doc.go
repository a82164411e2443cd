// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry is the name-keyed table of domain handles.
//
// Each name maps to one [Record] holding the current [domain.Handle].
// Records are created by [Registry.Register] (or [Registry.Attach] on
// the boot path), mutated only by [Registry.Update] (a hot swap of the
// handle under the same name) and by the crash path through the
// handle itself, and never deleted: a crashed domain's record persists
// so restart attempts can locate it.
//
// Handles returned by [Registry.Query] are cheap copies that refer to
// the same proxy. After an update, new queries return the new handle;
// handles obtained earlier keep calling the implementation they were
// obtained for until their holder queries again. Nothing is globally
// invalidated.
//
// The registry has a single mutex. It is held only while the map is
// read or written, never while a domain runs, so a lookup cannot block
// behind a long or crashing call.
package registry
