// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/partition/sheap"
)

// ErrDomainCrash is the uniform fault returned for any call into a
// domain that is not active, whether it was already inactive when the
// call began or crashed during it.
var ErrDomainCrash = errors.New("domain crashed")

// ErrnoDomainCrash is the error number reported for a crash. It lies
// outside the range of real errno values so callers translating to the
// POSIX-like space can still tell a crash from an operational error.
const ErrnoDomainCrash unix.Errno = 255

// CrashError reports a call refused or abandoned because the callee is
// not active. It matches ErrDomainCrash under errors.Is.
type CrashError struct {
	DomainID uint64
	Name     string
	Method   string
}

func (e *CrashError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("domain %s (id %d) crashed", e.Name, e.DomainID)
	}
	return fmt.Sprintf("%s on domain %s (id %d): domain crashed", e.Method, e.Name, e.DomainID)
}

// Is makes errors.Is(err, ErrDomainCrash) true for every CrashError.
func (e *CrashError) Is(target error) bool {
	return target == ErrDomainCrash
}

// IsCrash reports whether err is, or wraps, a domain crash.
func IsCrash(err error) bool {
	return errors.Is(err, ErrDomainCrash)
}

// OpError is an operational failure of a domain method.
type OpError struct {
	Op    string
	Errno unix.Errno
}

// NewOpError returns an *OpError for op failing with errno.
func NewOpError(op string, errno unix.Errno) error {
	return &OpError{Op: op, Errno: errno}
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Errno.Error()
}

func (e *OpError) Unwrap() error { return e.Errno }

// Errno maps err into the POSIX-like error-number space. nil maps to
// zero, a crash to ErrnoDomainCrash, heap exhaustion to ENOMEM, and
// any error without an errno in its chain to EIO.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	if IsCrash(err) {
		return ErrnoDomainCrash
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	if errors.Is(err, sheap.ErrExhausted) {
		return unix.ENOMEM
	}
	return unix.EIO
}

// ErrorFromErrno is the inverse of Errno for values received over the
// management surface. Zero maps to nil.
func ErrorFromErrno(op string, errno unix.Errno) error {
	switch errno {
	case 0:
		return nil
	case ErrnoDomainCrash:
		return fmt.Errorf("%s: %w", op, ErrDomainCrash)
	default:
		return NewOpError(op, errno)
	}
}
