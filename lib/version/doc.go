// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version carries build information for the partition
// binaries.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are injected with
// -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/partition/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without injection they read "unknown" and "0.1.0-dev".
// [SelfDigest] hashes the running binary with the same BLAKE3 scheme
// used for domain manifests.
package version
