// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package loader instantiates domains and drives the management
// surface: registering a domain under a name, hot-swapping the
// implementation behind a name, and reloading a crashed domain from
// its image.
//
// A domain image is an [Image] in a [Catalog]: a kind plus the
// [domain.Entry] that constructs an instance. Images stand in for
// independently compiled domain binaries; the catalog is populated at
// daemon start. A domain is registered either straight from an image
// name or from a JSONC [Manifest] that names the image and carries the
// kind-specific entry arguments (MMIO range, cache budget, backend
// domain).
//
// Registration allocates a fresh domain id, calls the image's entry
// with an [domain.Env], wraps the instance in its kind's proxy, runs
// Init through the proxy and inserts the handle into the registry.
// The proxy keeps a reloader that calls the same entry again with the
// same id and arguments; [Loader.ReloadDomain] frees the crashed
// instance's shared data and restarts the proxy from it.
//
// Hot updates are bracketed by a watchdog file (see lib/watchdog) so
// that a daemon dying mid-update reports it on the next start.
package loader
