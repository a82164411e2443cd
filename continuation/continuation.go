// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package continuation

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

// RegisterCount is the size of a continuation's saved register file.
const RegisterCount = 32

// Continuation is a saved resume point for one cross-domain call.
type Continuation struct {
	// Registers holds the program counters of the call site, innermost
	// first, with the trampoline's own frames skipped so the first
	// entry is the caller of the proxied method. Unused slots are zero.
	Registers [RegisterCount]uintptr

	// Resume produces the caller-visible result when the call is
	// abandoned. It receives the recovered panic value.
	Resume func(cause any) error

	// Domain is the id of the domain being called.
	Domain uint64

	// Method names the interface method being called.
	Method string
}

// Capture records the current call stack into a register file. skip
// is the number of frames above Capture's caller to omit, so skip=0
// records the caller itself.
func Capture(skip int) [RegisterCount]uintptr {
	var registers [RegisterCount]uintptr
	// +2 skips runtime.Callers and Capture.
	runtime.Callers(skip+2, registers[:])
	return registers
}

// CaptureOutside records the call stack starting at the first frame
// whose function is not under prefix. A trampoline passes its own
// package path so the saved entry begins at the code that called into
// it, however many of its own frames sit in between.
func CaptureOutside(prefix string) [RegisterCount]uintptr {
	var pcs [RegisterCount + 16]uintptr
	// +2 skips runtime.Callers and CaptureOutside.
	count := runtime.Callers(2, pcs[:])
	start := 0
	for start < count {
		function := runtime.FuncForPC(pcs[start] - 1)
		if function == nil || !strings.HasPrefix(function.Name(), prefix) {
			break
		}
		start++
	}
	var registers [RegisterCount]uintptr
	copy(registers[:], pcs[start:count])
	return registers
}

// Frames resolves the saved program counters into stack frames.
func (c Continuation) Frames() []runtime.Frame {
	count := 0
	for count < RegisterCount && c.Registers[count] != 0 {
		count++
	}
	if count == 0 {
		return nil
	}
	frames := runtime.CallersFrames(c.Registers[:count])
	var result []runtime.Frame
	for {
		frame, more := frames.Next()
		result = append(result, frame)
		if !more {
			break
		}
	}
	return result
}

// ResumeSite describes where execution continues when the call is
// abandoned, as "function file:line".
func (c Continuation) ResumeSite() string {
	frames := c.Frames()
	if len(frames) == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%s %s:%d", frames[0].Function, frames[0].File, frames[0].Line)
}

// Stack is a LIFO of continuations. It is safe for concurrent use,
// though in practice each hart's stack is driven by one call chain at
// a time.
type Stack struct {
	mu      sync.Mutex
	entries []Continuation
}

// Push adds c to the top of the stack and returns the new depth.
func (s *Stack) Push(c Continuation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, c)
	return len(s.entries)
}

// Pop removes and returns the top entry.
func (s *Stack) Pop() (Continuation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return Continuation{}, false
	}
	top := s.entries[len(s.entries)-1]
	s.entries[len(s.entries)-1] = Continuation{}
	s.entries = s.entries[:len(s.entries)-1]
	return top, true
}

// Peek returns the top entry without removing it.
func (s *Stack) Peek() (Continuation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return Continuation{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Snapshot returns a copy of the entries, innermost first.
func (s *Stack) Snapshot() []Continuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Continuation, len(s.entries))
	for i, entry := range s.entries {
		snapshot[len(s.entries)-1-i] = entry
	}
	return snapshot
}

// Depth returns the number of entries.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Truncate pops entries until the depth is at most depth and returns
// how many were discarded. Entries pushed by calls nested inside a
// faulting call are abandoned along with it.
func (s *Stack) Truncate(depth int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if depth < 0 {
		depth = 0
	}
	dropped := 0
	for len(s.entries) > depth {
		s.entries[len(s.entries)-1] = Continuation{}
		s.entries = s.entries[:len(s.entries)-1]
		dropped++
	}
	return dropped
}

// Hart is a logical hardware thread with its own continuation stack.
type Hart struct {
	id    int
	stack Stack
}

// TransientHartID is the id of harts created by Ensure for callers
// without hart bookkeeping.
const TransientHartID = -1

// ID returns the hart id.
func (h *Hart) ID() int { return h.id }

// Stack returns the hart's continuation stack.
func (h *Hart) Stack() *Stack { return &h.stack }

// Harts is the fixed table of harts created at boot.
type Harts struct {
	harts []*Hart
	next  atomic.Uint64
}

// NewHarts creates n harts with ids 0..n-1. n below one is treated as
// one.
func NewHarts(n int) *Harts {
	if n < 1 {
		n = 1
	}
	table := &Harts{harts: make([]*Hart, n)}
	for i := range table.harts {
		table.harts[i] = &Hart{id: i}
	}
	return table
}

// Hart returns the hart with the given id.
func (t *Harts) Hart(id int) (*Hart, bool) {
	if id < 0 || id >= len(t.harts) {
		return nil, false
	}
	return t.harts[id], true
}

// Len returns the number of harts.
func (t *Harts) Len() int { return len(t.harts) }

// Next returns harts round-robin. Used to spread externally
// originated requests across the table.
func (t *Harts) Next() *Hart {
	index := (t.next.Add(1) - 1) % uint64(len(t.harts))
	return t.harts[index]
}

// Depths returns the current stack depth of each hart, indexed by id.
func (t *Harts) Depths() []int {
	depths := make([]int, len(t.harts))
	for i, hart := range t.harts {
		depths[i] = hart.stack.Depth()
	}
	return depths
}

type hartKey struct{}

// WithHart returns a context bound to hart.
func WithHart(ctx context.Context, hart *Hart) context.Context {
	return context.WithValue(ctx, hartKey{}, hart)
}

// FromContext returns the hart bound to ctx.
func FromContext(ctx context.Context) (*Hart, bool) {
	hart, ok := ctx.Value(hartKey{}).(*Hart)
	return hart, ok && hart != nil
}

// Ensure returns ctx and its hart, binding a transient hart when ctx
// has none. The returned context must be passed down the call chain so
// nested calls share the same stack.
func Ensure(ctx context.Context) (context.Context, *Hart) {
	if hart, ok := FromContext(ctx); ok {
		return ctx, hart
	}
	hart := &Hart{id: TransientHartID}
	return WithHart(ctx, hart), hart
}

// Register pushes c onto the stack of the hart bound to ctx and
// returns the depth before the push. ctx must carry a hart.
func Register(ctx context.Context, c Continuation) (int, error) {
	hart, ok := FromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("register continuation for %s: no hart bound to context", c.Method)
	}
	return hart.stack.Push(c) - 1, nil
}

// PopContinuation removes and returns the top entry of the stack of
// the hart bound to ctx.
func PopContinuation(ctx context.Context) (Continuation, bool) {
	hart, ok := FromContext(ctx)
	if !ok {
		return Continuation{}, false
	}
	return hart.stack.Pop()
}

// Depth returns the stack depth of the hart bound to ctx, or zero.
func Depth(ctx context.Context) int {
	hart, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return hart.stack.Depth()
}

// Caller returns the id of the domain whose code is currently running
// on the hart bound to ctx: the callee of the innermost open call, or
// zero when the kernel itself is running.
func Caller(ctx context.Context) uint64 {
	hart, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	top, ok := hart.stack.Peek()
	if !ok {
		return 0
	}
	return top.Domain
}
