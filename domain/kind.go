// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"fmt"
	"strconv"
)

// Kind identifies which capability interface a domain implements. The
// numeric values are the wire encoding used by the management surface
// and must not change.
type Kind uint8

const (
	KindFS               Kind = 1
	KindBlockDevice      Kind = 2
	KindCacheBlockDevice Kind = 3
	KindRTC              Kind = 4
	KindGPU              Kind = 5
	KindInput            Kind = 6
	KindVFS              Kind = 7
	KindUART             Kind = 8
	KindPLIC             Kind = 9
	KindTask             Kind = 10
	KindSyscall          Kind = 11
	KindShadowBlock      Kind = 12
	KindBufferedUART     Kind = 13
	KindNetDevice        Kind = 14
	KindBufferedInput    Kind = 15
	KindEmptyDevice      Kind = 16
	KindDevFS            Kind = 17
	KindScheduler        Kind = 18
	KindLog              Kind = 19
	KindNetStack         Kind = 20
)

var kindNames = [...]string{
	KindFS:               "fs",
	KindBlockDevice:      "block_device",
	KindCacheBlockDevice: "cache_block_device",
	KindRTC:              "rtc",
	KindGPU:              "gpu",
	KindInput:            "input",
	KindVFS:              "vfs",
	KindUART:             "uart",
	KindPLIC:             "plic",
	KindTask:             "task",
	KindSyscall:          "syscall",
	KindShadowBlock:      "shadow_block",
	KindBufferedUART:     "buffered_uart",
	KindNetDevice:        "net_device",
	KindBufferedInput:    "buffered_input",
	KindEmptyDevice:      "empty_device",
	KindDevFS:            "devfs",
	KindScheduler:        "scheduler",
	KindLog:              "log",
	KindNetStack:         "net_stack",
}

// Kinds returns every valid kind in wire order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames)-1)
	for k := KindFS; k <= KindNetStack; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= KindFS && k <= KindNetStack
}

// String returns the snake_case name of the kind, or "kind(N)" for an
// undefined value.
func (k Kind) String() string {
	if !k.Valid() {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind accepts a kind name or its decimal wire value.
func ParseKind(s string) (Kind, error) {
	for k := KindFS; k <= KindNetStack; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && Kind(n).Valid() {
		return Kind(n), nil
	}
	return 0, fmt.Errorf("unknown domain kind %q", s)
}

// MarshalText encodes the kind by name so config files and CLI output
// stay readable.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid domain kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a kind name or decimal wire value.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
