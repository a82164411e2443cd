// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the partition
// binaries: reporting an error from run() before or after the
// structured logger exists, and exiting.
package process
