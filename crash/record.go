// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crash

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// maxFrames bounds the captured backtrace.
const maxFrames = 64

// Record describes one domain crash.
type Record struct {
	DomainID uint64 `json:"domain_id"`
	Domain   string `json:"domain"`
	Kind     string `json:"kind"`
	Method   string `json:"method"`
	Message  string `json:"message"`
	Location string `json:"location"`
	Hart     int    `json:"hart"`

	// Backtrace lists frames from the panic site outward, one
	// "function file:line" per entry.
	Backtrace []string `json:"backtrace,omitempty"`

	// ResumeSite is where the caller resumed after the crash.
	ResumeSite string `json:"resume_site,omitempty"`

	Time time.Time `json:"time"`
}

func (r Record) String() string {
	return fmt.Sprintf("domain %s (id %d) panicked in %s at %s: %s",
		r.Domain, r.DomainID, r.Method, r.Location, r.Message)
}

// Capture builds a record from a recovered panic value. It must be
// called from the deferred function that recovered the panic, so the
// panicking frames are still on the stack. Identity fields are left
// for the caller to fill in.
func Capture(value any) Record {
	pcs := make([]uintptr, maxFrames)
	// Skip runtime.Callers and Capture.
	count := runtime.Callers(2, pcs)
	location, backtrace := panicFrames(pcs[:count])
	return Record{
		Message:   Message(value),
		Location:  location,
		Backtrace: backtrace,
	}
}

// Message renders a recovered panic value.
func Message(value any) string {
	switch v := value.(type) {
	case nil:
		return "panic(nil)"
	case error:
		return v.Error()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// panicFrames walks the stack captured inside a deferred recover. The
// frames above runtime.gopanic belong to the recovery machinery; the
// first non-runtime frame below it is where the panic was raised. When
// no gopanic frame is present the whole stack is reported.
func panicFrames(pcs []uintptr) (string, []string) {
	frames := runtime.CallersFrames(pcs)
	var all, afterPanic []string
	location := ""
	panicking := false
	for {
		frame, more := frames.Next()
		line := fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line)
		all = append(all, line)
		switch {
		case frame.Function == "runtime.gopanic":
			panicking = true
			afterPanic = afterPanic[:0]
		case panicking && strings.HasPrefix(frame.Function, "runtime."):
			// runtime.panicmem, runtime.sigpanic and friends sit
			// between gopanic and the faulting frame.
		case panicking:
			if location == "" {
				location = fmt.Sprintf("%s:%d", frame.File, frame.Line)
			}
			afterPanic = append(afterPanic, line)
		}
		if !more {
			break
		}
	}
	if panicking {
		return location, afterPanic
	}
	if len(all) > 0 {
		return strings.SplitN(all[0], " ", 2)[1], all
	}
	return "unknown", nil
}
