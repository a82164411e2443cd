// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidHandle is returned when a handle's value does not satisfy
// its kind's interface, or the kind is undefined.
var ErrInvalidHandle = errors.New("invalid domain handle")

var contracts = map[Kind]reflect.Type{
	KindFS:               reflect.TypeFor[FS](),
	KindBlockDevice:      reflect.TypeFor[BlockDevice](),
	KindCacheBlockDevice: reflect.TypeFor[CacheBlockDevice](),
	KindRTC:              reflect.TypeFor[RTC](),
	KindGPU:              reflect.TypeFor[GPU](),
	KindInput:            reflect.TypeFor[Input](),
	KindVFS:              reflect.TypeFor[VFS](),
	KindUART:             reflect.TypeFor[UART](),
	KindPLIC:             reflect.TypeFor[PLIC](),
	KindTask:             reflect.TypeFor[Task](),
	KindSyscall:          reflect.TypeFor[Syscall](),
	KindShadowBlock:      reflect.TypeFor[ShadowBlock](),
	KindBufferedUART:     reflect.TypeFor[BufferedUART](),
	KindNetDevice:        reflect.TypeFor[NetDevice](),
	KindBufferedInput:    reflect.TypeFor[BufferedInput](),
	KindEmptyDevice:      reflect.TypeFor[EmptyDevice](),
	KindDevFS:            reflect.TypeFor[DevFS](),
	KindScheduler:        reflect.TypeFor[Scheduler](),
	KindLog:              reflect.TypeFor[Log](),
	KindNetStack:         reflect.TypeFor[NetStack](),
}

// Contract returns the interface type a domain of kind must implement.
func Contract(kind Kind) (reflect.Type, bool) {
	contract, ok := contracts[kind]
	return contract, ok
}

// Satisfies reports whether value implements kind's interface.
func Satisfies(kind Kind, value any) bool {
	contract, ok := contracts[kind]
	if !ok || value == nil {
		return false
	}
	return reflect.TypeOf(value).Implements(contract)
}

// Handle is the tagged union stored in the registry: a kind plus a
// value implementing that kind's interface. Copying a Handle is cheap
// and every copy refers to the same domain instance. The zero Handle
// is invalid.
type Handle struct {
	kind  Kind
	value Basic
}

// NewHandle tags value with kind after checking that it implements the
// kind's interface.
func NewHandle(kind Kind, value Basic) (Handle, error) {
	if !kind.Valid() {
		return Handle{}, fmt.Errorf("%w: undefined kind %d", ErrInvalidHandle, uint8(kind))
	}
	if !Satisfies(kind, value) {
		return Handle{}, fmt.Errorf("%w: %T does not implement %s", ErrInvalidHandle, value, kind)
	}
	return Handle{kind: kind, value: value}, nil
}

// Kind returns the handle's tag.
func (h Handle) Kind() Kind { return h.kind }

// Basic returns the handle's value through its liveness capability.
func (h Handle) Basic() Basic { return h.value }

// Valid reports whether the handle holds a value.
func (h Handle) Valid() bool { return h.value != nil }

// DomainID returns the id of the domain behind the handle.
func (h Handle) DomainID() uint64 {
	if h.value == nil {
		return 0
	}
	return h.value.DomainID()
}

// IsActive reports whether the domain behind the handle is active. An
// invalid handle is never active.
func (h Handle) IsActive() bool {
	return h.value != nil && h.value.IsActive()
}

// Same reports whether two handles refer to the same instance.
func (h Handle) Same(other Handle) bool {
	return h.kind == other.kind && h.value == other.value
}

func (h Handle) String() string {
	if h.value == nil {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%s, id %d)", h.kind, h.value.DomainID())
}

// As returns the handle's value as interface I when the handle is
// tagged with kind.
func As[I Basic](h Handle, kind Kind) (I, bool) {
	var zero I
	if h.kind != kind || h.value == nil {
		return zero, false
	}
	typed, ok := h.value.(I)
	if !ok {
		return zero, false
	}
	return typed, true
}

func (h Handle) FS() (FS, bool)                   { return As[FS](h, KindFS) }
func (h Handle) BlockDevice() (BlockDevice, bool) { return As[BlockDevice](h, KindBlockDevice) }
func (h Handle) CacheBlockDevice() (CacheBlockDevice, bool) {
	return As[CacheBlockDevice](h, KindCacheBlockDevice)
}
func (h Handle) RTC() (RTC, bool)                 { return As[RTC](h, KindRTC) }
func (h Handle) GPU() (GPU, bool)                 { return As[GPU](h, KindGPU) }
func (h Handle) Input() (Input, bool)             { return As[Input](h, KindInput) }
func (h Handle) VFS() (VFS, bool)                 { return As[VFS](h, KindVFS) }
func (h Handle) UART() (UART, bool)               { return As[UART](h, KindUART) }
func (h Handle) PLIC() (PLIC, bool)               { return As[PLIC](h, KindPLIC) }
func (h Handle) Task() (Task, bool)               { return As[Task](h, KindTask) }
func (h Handle) Syscall() (Syscall, bool)         { return As[Syscall](h, KindSyscall) }
func (h Handle) ShadowBlock() (ShadowBlock, bool) { return As[ShadowBlock](h, KindShadowBlock) }
func (h Handle) BufferedUART() (BufferedUART, bool) {
	return As[BufferedUART](h, KindBufferedUART)
}
func (h Handle) NetDevice() (NetDevice, bool) { return As[NetDevice](h, KindNetDevice) }
func (h Handle) BufferedInput() (BufferedInput, bool) {
	return As[BufferedInput](h, KindBufferedInput)
}
func (h Handle) EmptyDevice() (EmptyDevice, bool) { return As[EmptyDevice](h, KindEmptyDevice) }
func (h Handle) DevFS() (DevFS, bool)             { return As[DevFS](h, KindDevFS) }
func (h Handle) Scheduler() (Scheduler, bool)     { return As[Scheduler](h, KindScheduler) }
func (h Handle) Log() (Log, bool)                 { return As[Log](h, KindLog) }
func (h Handle) NetStack() (NetStack, bool)       { return As[NetStack](h, KindNetStack) }
