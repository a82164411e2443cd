// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes content digests for domain images and their
// manifests.
//
// The loader records a digest for every domain it instantiates, so the
// management surface can show which image a running domain came from
// and whether an update actually changed anything. Digests are keyed
// BLAKE3: the key separates image digests from any other BLAKE3 use in
// the process, so a digest of one kind of content can never be
// mistaken for another.
//
//   - [HashFile] streams a file through the hasher with constant memory
//   - [HashBytes] hashes an in-memory image description
//   - [FormatDigest] and [ParseDigest] convert to and from the
//     hex form used in logs and on the management socket
package binhash
