// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/partition/continuation"
	"github.com/bureau-foundation/partition/crash"
	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/lib/testutil"
	"github.com/bureau-foundation/partition/rref"
	"github.com/bureau-foundation/partition/sheap"
)

// testBlock is a RAM block device that counts method bodies executed
// and can be told to panic.
type testBlock struct {
	domain.Base
	domain.NoIRQ

	mu     sync.Mutex
	blocks map[uint32]domain.Block

	initialized atomic.Int32
	bodies      atomic.Int32
	panicRead   atomic.Bool
	sawOwner    atomic.Uint64
	sawBorrows  atomic.Int64
	onRead      func(ctx context.Context)
}

func newTestBlock(id uint64) *testBlock {
	return &testBlock{Base: domain.Base{ID: id}, blocks: map[uint32]domain.Block{}}
}

func (b *testBlock) Init(context.Context, domain.Range) error {
	b.initialized.Add(1)
	return nil
}

func (b *testBlock) ReadBlock(ctx context.Context, block uint32, buf rref.RRef[domain.Block]) (rref.RRef[domain.Block], error) {
	b.bodies.Add(1)
	b.sawOwner.Store(buf.Owner())
	if b.onRead != nil {
		b.onRead(ctx)
	}
	if b.panicRead.Load() {
		panic("simulated fault in read path")
	}
	if block > 1000 {
		return buf, domain.NewOpError("read_block", unix.EINVAL)
	}
	b.mu.Lock()
	*buf.Get() = b.blocks[block]
	b.mu.Unlock()
	return buf, nil
}

func (b *testBlock) WriteBlock(_ context.Context, block uint32, buf *rref.RRef[domain.Block]) (int, error) {
	b.bodies.Add(1)
	b.sawBorrows.Store(buf.Borrows())
	b.sawOwner.Store(buf.Owner())
	b.mu.Lock()
	b.blocks[block] = *buf.Get()
	b.mu.Unlock()
	return domain.BlockSize, nil
}

func (b *testBlock) Capacity(context.Context) (uint64, error) {
	b.bodies.Add(1)
	return 1000 * domain.BlockSize, nil
}

func (b *testBlock) Flush(context.Context) error {
	b.bodies.Add(1)
	return nil
}

func wrapBlock(t *testing.T, impl *testBlock, options Options) *BlockDeviceProxy {
	t.Helper()
	if options.Name == "" {
		options.Name = "blk-1"
	}
	handle, err := Wrap(domain.KindBlockDevice, impl.ID, impl, options)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	block, ok := handle.BlockDevice()
	if !ok {
		t.Fatal("Wrap did not produce a BlockDevice handle")
	}
	return block.(*BlockDeviceProxy)
}

func newBuffer(t *testing.T, heap *sheap.Heap) rref.RRef[domain.Block] {
	t.Helper()
	buf, err := rref.New(heap, sheap.KernelDomain, domain.Block{})
	if err != nil {
		t.Fatalf("rref.New: %v", err)
	}
	return buf
}

func TestForwardingAndOwnership(t *testing.T) {
	heap := sheap.New(sheap.Config{})
	impl := newTestBlock(4)
	block := wrapBlock(t, impl, Options{})
	ctx := context.Background()

	if err := block.Init(ctx, domain.Range{Start: 0x1000, End: 0x2000}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	data := newBuffer(t, heap)
	data.Get()[0] = 0x5A
	written, err := block.WriteBlock(ctx, 3, &data)
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if written != domain.BlockSize {
		t.Errorf("WriteBlock wrote %d bytes, want %d", written, domain.BlockSize)
	}
	if impl.sawBorrows.Load() != 1 {
		t.Errorf("callee saw %d borrows during WriteBlock, want 1", impl.sawBorrows.Load())
	}
	if impl.sawOwner.Load() != sheap.KernelDomain {
		t.Errorf("borrowed buffer owner inside callee = %d, want the kernel", impl.sawOwner.Load())
	}
	if data.Borrows() != 0 {
		t.Errorf("Borrows() = %d after WriteBlock returned", data.Borrows())
	}

	buf := newBuffer(t, heap)
	result, err := block.ReadBlock(ctx, 3, buf)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if impl.sawOwner.Load() != 4 {
		t.Errorf("moved buffer owner inside callee = %d, want 4", impl.sawOwner.Load())
	}
	if result.Owner() != sheap.KernelDomain {
		t.Errorf("returned buffer owner = %d, want the kernel", result.Owner())
	}
	if result.Get()[0] != 0x5A {
		t.Errorf("read back %#x, want 0x5a", result.Get()[0])
	}

	// An operational error hands the moved buffer back.
	spare := newBuffer(t, heap)
	_, err = block.ReadBlock(ctx, 5000, spare)
	if !errors.Is(err, unix.EINVAL) {
		t.Fatalf("ReadBlock out of range error = %v, want EINVAL", err)
	}
	if domain.IsCrash(err) {
		t.Error("operational error reported as a crash")
	}
	if spare.Owner() != sheap.KernelDomain {
		t.Errorf("buffer owner after failed read = %d, want the kernel", spare.Owner())
	}
	if !block.IsActive() {
		t.Error("operational error deactivated the domain")
	}
}

// TestLivenessGating checks that once a domain is inactive no call
// reaches its implementation.
func TestLivenessGating(t *testing.T) {
	heap := sheap.New(sheap.Config{})
	impl := newTestBlock(2)
	block := wrapBlock(t, impl, Options{})
	ctx := context.Background()

	block.Deactivate("test")
	if block.IsActive() {
		t.Fatal("IsActive() after Deactivate")
	}
	before := impl.bodies.Load()

	buf := newBuffer(t, heap)
	calls := []func() error{
		func() error { _, err := block.ReadBlock(ctx, 0, buf); return err },
		func() error { _, err := block.WriteBlock(ctx, 0, &buf); return err },
		func() error { _, err := block.Capacity(ctx); return err },
		func() error { return block.Flush(ctx) },
		func() error { return block.HandleIRQ(ctx) },
	}
	for i, call := range calls {
		err := call()
		var crashErr *domain.CrashError
		if !errors.As(err, &crashErr) {
			t.Fatalf("call %d on inactive domain error = %v, want CrashError", i, err)
		}
		if crashErr.DomainID != 2 || crashErr.Name != "blk-1" {
			t.Errorf("CrashError = %+v", crashErr)
		}
	}
	if impl.bodies.Load() != before {
		t.Errorf("inactive domain executed %d method bodies", impl.bodies.Load()-before)
	}
	if buf.Owner() != sheap.KernelDomain || buf.Borrows() != 0 {
		t.Error("refused call moved or lent the buffer")
	}
	if stats := block.Stats(); stats.Refused != uint64(len(calls)) {
		t.Errorf("Stats().Refused = %d, want %d", stats.Refused, len(calls))
	}
}

func TestPanicIsContained(t *testing.T) {
	heap := sheap.New(sheap.Config{})
	recorder := &crash.Recorder{}
	impl := newTestBlock(9)
	block := wrapBlock(t, impl, Options{Reporter: recorder})

	harts := continuation.NewHarts(1)
	hart, _ := harts.Hart(0)
	ctx := continuation.WithHart(context.Background(), hart)

	if _, err := block.ReadBlock(ctx, 0, newBuffer(t, heap)); err != nil {
		t.Fatalf("healthy ReadBlock: %v", err)
	}

	impl.panicRead.Store(true)
	_, err := block.ReadBlock(ctx, 0, newBuffer(t, heap))
	if !domain.IsCrash(err) {
		t.Fatalf("ReadBlock on panicking domain error = %v, want a crash", err)
	}
	if block.State() != crash.Inactive {
		t.Errorf("State() = %s, want inactive", block.State())
	}
	if hart.Stack().Depth() != 0 {
		t.Errorf("continuation depth = %d after contained panic, want 0", hart.Stack().Depth())
	}

	records := recorder.Records()
	if len(records) != 1 {
		t.Fatalf("recorded %d crashes, want 1", len(records))
	}
	record := records[0]
	if record.DomainID != 9 || record.Method != "ReadBlock" || record.Kind != "block_device" {
		t.Errorf("record identity = %+v", record)
	}
	if record.Message != "simulated fault in read path" {
		t.Errorf("record.Message = %q", record.Message)
	}
	if record.ResumeSite == "unknown" || strings.Contains(record.ResumeSite, ".enter") {
		t.Errorf("ResumeSite = %q, want a frame outside the trampoline", record.ResumeSite)
	}
	if len(record.Backtrace) == 0 || !strings.Contains(record.Backtrace[0], "ReadBlock") {
		t.Errorf("Backtrace should start in the panicking method: %v", record.Backtrace)
	}

	// Healthy again only after an explicit restart.
	impl.panicRead.Store(false)
	if _, err := block.ReadBlock(ctx, 0, newBuffer(t, heap)); !domain.IsCrash(err) {
		t.Errorf("ReadBlock after crash error = %v, want a crash", err)
	}
}

// outer is a scheduler-shaped domain whose AddTask calls into a block
// domain, so tests can observe nesting.
type outer struct {
	domain.Base
	inner     *BlockDeviceProxy
	heap      *sheap.Heap
	depthSeen atomic.Int64
}

func (o *outer) Init(context.Context) error { return nil }

func (o *outer) AddTask(ctx context.Context, info rref.RRef[domain.TaskInfo]) error {
	o.depthSeen.Store(int64(continuation.Depth(ctx)))
	buf, err := rref.New(o.heap, o.ID, domain.Block{})
	if err != nil {
		return err
	}
	_, err = o.inner.ReadBlock(ctx, 0, buf)
	if err != nil {
		// After the inner fault resumed here, this call's own entry
		// is the top of the stack again.
		o.depthSeen.Store(int64(continuation.Depth(ctx)))
	}
	return err
}

func (o *outer) FetchTask(_ context.Context, scratch rref.RRef[domain.TaskInfo]) (rref.RRef[domain.TaskInfo], error) {
	return scratch, nil
}

func TestNestedCrashResumesAtBoundary(t *testing.T) {
	heap := sheap.New(sheap.Config{})
	innerImpl := newTestBlock(20)
	innerImpl.panicRead.Store(true)
	inner := wrapBlock(t, innerImpl, Options{Name: "blk-inner"})

	outerImpl := &outer{Base: domain.Base{ID: 10}, inner: inner, heap: heap}
	handle, err := Wrap(domain.KindScheduler, 10, outerImpl, Options{Name: "sched"})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	scheduler, _ := handle.Scheduler()

	harts := continuation.NewHarts(1)
	hart, _ := harts.Hart(0)
	ctx := continuation.WithHart(context.Background(), hart)

	info, err := rref.New(heap, sheap.KernelDomain, domain.TaskInfo{TID: 1})
	if err != nil {
		t.Fatalf("rref.New: %v", err)
	}
	err = scheduler.AddTask(ctx, info)

	var crashErr *domain.CrashError
	if !errors.As(err, &crashErr) || crashErr.Name != "blk-inner" {
		t.Fatalf("AddTask error = %v, want the inner domain's crash", err)
	}
	if outerImpl.depthSeen.Load() != 1 {
		t.Errorf("depth inside outer after inner fault = %d, want 1", outerImpl.depthSeen.Load())
	}
	if !scheduler.IsActive() {
		t.Error("outer domain deactivated by a nested crash")
	}
	if inner.IsActive() {
		t.Error("inner domain still active after panicking")
	}
	if hart.Stack().Depth() != 0 {
		t.Errorf("depth after return = %d, want 0", hart.Stack().Depth())
	}
	if innerImpl.sawOwner.Load() != 20 {
		t.Errorf("inner saw buffer owned by %d, want 20", innerImpl.sawOwner.Load())
	}
}

func TestDeactivationVisibleAcrossHarts(t *testing.T) {
	heap := sheap.New(sheap.Config{})
	impl := newTestBlock(3)
	entered := make(chan struct{})
	proceed := make(chan struct{})
	impl.onRead = func(context.Context) {
		close(entered)
		<-proceed
	}
	block := wrapBlock(t, impl, Options{})

	harts := continuation.NewHarts(2)
	first, _ := harts.Hart(0)
	second, _ := harts.Hart(1)

	buf := newBuffer(t, heap)
	done := make(chan error, 1)
	go func() {
		_, err := block.ReadBlock(continuation.WithHart(context.Background(), first), 0, buf)
		done <- err
	}()
	testutil.RequireClosed(t, entered, 5*time.Second, "first hart entering ReadBlock")

	block.Deactivate("fault observed on another hart")
	if _, err := block.Capacity(continuation.WithHart(context.Background(), second)); !domain.IsCrash(err) {
		t.Errorf("second hart call error = %v, want a crash", err)
	}

	close(proceed)
	err := testutil.RequireReceive(t, done, 5*time.Second, "first hart returning")
	if err != nil {
		t.Errorf("in-flight call error = %v, want nil (calls are not interrupted)", err)
	}
	if first.Stack().Depth() != 0 || second.Stack().Depth() != 0 {
		t.Errorf("depths = %v, want all zero", harts.Depths())
	}
}

func TestRestart(t *testing.T) {
	heap := sheap.New(sheap.Config{})
	impl := newTestBlock(5)
	impl.panicRead.Store(true)
	block := wrapBlock(t, impl, Options{})
	ctx := context.Background()

	if err := block.Restart(ctx); !errors.Is(err, ErrNoReloader) {
		t.Fatalf("Restart without reloader error = %v, want ErrNoReloader", err)
	}
	if block.State() != crash.Failed {
		t.Errorf("State() after failed restart = %s, want failed", block.State())
	}

	if err := block.Init(ctx, domain.Range{Start: 0, End: 4096}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var fresh *testBlock
	block.SetReloader(func(context.Context) (domain.Basic, error) {
		fresh = newTestBlock(5)
		return fresh, nil
	})
	if err := block.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if fresh.initialized.Load() != 1 {
		t.Errorf("recorded Init replayed %d times on the fresh instance, want 1", fresh.initialized.Load())
	}
	if block.State() != crash.Active || !block.IsActive() {
		t.Errorf("State() after restart = %s", block.State())
	}
	if block.Instance() != domain.BlockDevice(fresh) {
		t.Error("restart did not swap in the fresh instance")
	}
	if _, err := block.ReadBlock(ctx, 0, newBuffer(t, heap)); err != nil {
		t.Errorf("ReadBlock after restart: %v", err)
	}
	if stats := block.Stats(); stats.Restarts != 1 || stats.Retired != 1 {
		t.Errorf("Stats() = %+v, want one restart and one retired instance", stats)
	}
}

type panicsOnInit struct{ testBlock }

func (p *panicsOnInit) Init(context.Context, domain.Range) error { panic("init exploded") }

func TestRestartFailsWhenInitPanics(t *testing.T) {
	impl := newTestBlock(6)
	block := wrapBlock(t, impl, Options{})
	ctx := context.Background()
	if err := block.Init(ctx, domain.Range{Start: 0, End: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	block.Deactivate("test")
	block.SetReloader(func(context.Context) (domain.Basic, error) {
		broken := &panicsOnInit{}
		broken.ID = 6
		broken.blocks = map[uint32]domain.Block{}
		return broken, nil
	})
	err := block.Restart(ctx)
	if err == nil || !strings.Contains(err.Error(), "init exploded") {
		t.Fatalf("Restart error = %v, want the init panic", err)
	}
	if block.IsActive() || block.State() != crash.Failed {
		t.Errorf("after failed restart: active=%v state=%s", block.IsActive(), block.State())
	}
	if block.Instance() != domain.BlockDevice(impl) {
		t.Error("failed restart swapped in the broken instance")
	}
}

// TestReplacedInstancePanicLeavesReplacementActive covers a call still
// running in an instance that a restart has retired: its late panic is
// reported to its caller, but the fresh instance keeps serving.
func TestReplacedInstancePanicLeavesReplacementActive(t *testing.T) {
	heap := sheap.New(sheap.Config{})
	recorder := &crash.Recorder{}
	old := newTestBlock(9)
	entered := make(chan struct{})
	proceed := make(chan struct{})
	old.onRead = func(context.Context) {
		close(entered)
		<-proceed
	}
	block := wrapBlock(t, old, Options{Reporter: recorder})

	harts := continuation.NewHarts(2)
	first, _ := harts.Hart(0)
	second, _ := harts.Hart(1)

	buf := newBuffer(t, heap)
	done := make(chan error, 1)
	go func() {
		_, err := block.ReadBlock(continuation.WithHart(context.Background(), first), 0, buf)
		done <- err
	}()
	testutil.RequireClosed(t, entered, 5*time.Second, "first hart entering ReadBlock")

	fresh := newTestBlock(9)
	block.SetReloader(func(context.Context) (domain.Basic, error) { return fresh, nil })
	ctx := continuation.WithHart(context.Background(), second)
	if err := block.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}

	old.panicRead.Store(true)
	close(proceed)
	err := testutil.RequireReceive(t, done, 5*time.Second, "first hart returning")
	if !domain.IsCrash(err) {
		t.Fatalf("in-flight call on the retired instance error = %v, want a crash", err)
	}

	if !block.IsActive() || block.State() != crash.Active {
		t.Fatalf("after retired instance panicked: active=%v state=%s, want active", block.IsActive(), block.State())
	}
	if _, err := block.ReadBlock(ctx, 0, newBuffer(t, heap)); err != nil {
		t.Errorf("ReadBlock on the replacement: %v", err)
	}
	if fresh.bodies.Load() != 1 {
		t.Errorf("replacement executed %d bodies, want 1", fresh.bodies.Load())
	}
	if recorder.Len() != 1 {
		t.Errorf("recorded %d crashes, want 1", recorder.Len())
	}
	if stats := block.Stats(); stats.Crashes != 0 || stats.Restarts != 1 {
		t.Errorf("Stats() = %+v, want no crash of the current instance and one restart", stats)
	}
	if first.Stack().Depth() != 0 || second.Stack().Depth() != 0 {
		t.Errorf("depths = %v, want all zero", harts.Depths())
	}
}

func TestCrashCountExcludesDeactivation(t *testing.T) {
	heap := sheap.New(sheap.Config{})
	ctx := context.Background()

	healthy := wrapBlock(t, newTestBlock(7), Options{})
	healthy.Deactivate("reload requested")
	if stats := healthy.Stats(); stats.Crashes != 0 {
		t.Errorf("Crashes after Deactivate on a healthy domain = %d, want 0", stats.Crashes)
	}

	impl := newTestBlock(8)
	impl.panicRead.Store(true)
	faulty := wrapBlock(t, impl, Options{})
	if _, err := faulty.ReadBlock(ctx, 0, newBuffer(t, heap)); !domain.IsCrash(err) {
		t.Fatalf("ReadBlock error = %v, want a crash", err)
	}
	faulty.Deactivate("reload requested")
	faulty.Deactivate("reload requested")
	if stats := faulty.Stats(); stats.Crashes != 1 {
		t.Errorf("Crashes = %d after one fault and two deactivations, want 1", stats.Crashes)
	}
}

func TestWrapRejectsMismatchedInstance(t *testing.T) {
	impl := newTestBlock(1)
	if _, err := Wrap(domain.KindScheduler, 1, impl, Options{}); !errors.Is(err, domain.ErrInvalidHandle) {
		t.Errorf("Wrap(scheduler, block) error = %v, want ErrInvalidHandle", err)
	}
	if _, err := Wrap(domain.Kind(0), 1, impl, Options{}); !errors.Is(err, domain.ErrInvalidHandle) {
		t.Errorf("Wrap(kind 0) error = %v, want ErrInvalidHandle", err)
	}
}

func TestInitHelper(t *testing.T) {
	impl := newTestBlock(1)
	handle, err := Wrap(domain.KindBlockDevice, 1, impl, Options{Name: "blk"})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if err := Init(context.Background(), handle, domain.Args{}); err == nil {
		t.Error("Init of a block device without mmio succeeded")
	}
	mmio := domain.Range{Start: 0x10000000, End: 0x10001000}
	if err := Init(context.Background(), handle, domain.Args{MMIO: &mmio}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if impl.initialized.Load() != 1 {
		t.Errorf("Init ran %d times, want 1", impl.initialized.Load())
	}
	controller, ok := ControllerOf(handle)
	if !ok || controller.Name() != "blk" || controller.Kind() != domain.KindBlockDevice {
		t.Errorf("ControllerOf = %v, %v", controller, ok)
	}
}
