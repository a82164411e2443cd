// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the partition daemon's YAML configuration.
//
// The file is named either by the PARTITION_CONFIG environment
// variable ([Load]) or by the daemon's --config flag ([LoadFile]).
// There is no search path and no fallback file.
//
// A file may carry development, staging, and production sections;
// the one matching [Config].Environment overrides the base values.
// After loading, ${HOME}, ${PARTITION_ROOT}, and ${VAR:-default}
// references in path fields and boot sources are expanded.
//
// The boot list names the domains the daemon registers at startup,
// either by manifest path or by built-in image name.
package config
