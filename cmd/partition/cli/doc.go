// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework of the partition CLI: a tree of
// [Command] values with help output and typo suggestions, flag binding
// from tagged params structs, --json output, and the flags that locate
// the daemon's management socket.
package cli
