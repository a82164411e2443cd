// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens zombiezen.com/go/sqlite connection pools
// with the daemon's standard pragmas and an optional schema script.
//
// Every connection gets WAL journaling, NORMAL synchronous (durable
// across a process crash, which is the failure the crash journal cares
// about), a five second busy timeout and in-memory temp storage. The
// Schema script runs on each new connection, so tables exist before
// the first statement without a separate migration step.
//
// The package is thin on purpose: callers write SQL and use
// sqlitex.Execute with the connection they Take.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(stateDir, "crashes.db"),
//	    Schema: `CREATE TABLE IF NOT EXISTS crashes (...);`,
//	})
package sqlitepool
