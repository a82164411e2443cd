// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernel is the composition root of the partition daemon.
//
// A [Kernel] owns the process-wide state every other package receives
// by reference: the shared heap, the hart table, the domain registry,
// and the loader with its image catalog. It also fans crash records
// out to the log, to a bounded in-memory list, and to the sqlite crash
// journal when one is configured.
//
// [Kernel.Boot] is the first-registration path: it reports a hot
// update interrupted by the previous run, prunes the journal, then
// registers the configured boot domains in order.
//
// [Kernel.RegisterActions] exposes the management surface on a
// service.SocketServer:
//
//   - status: version, uptime, domain and hart counts
//   - register_domain: load a manifest or built-in image under a name
//   - update_domain: hot-swap the implementation behind a name
//   - reload_domain: restart a domain from its image
//   - list_domains, list_images, list_crashes, heap_stats
//
// Requests arriving from outside are bound to a hart with
// [Kernel.Context] before they call into any domain, so nested domain
// calls share one continuation stack.
package kernel
