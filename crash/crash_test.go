// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crash

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/partition/lib/testutil"
)

func panicsWith(value any) {
	panic(value)
}

func captureFrom(value any) (record Record) {
	defer func() {
		record = Capture(recover())
	}()
	panicsWith(value)
	return Record{}
}

func dereferencesNil() int {
	var p *int
	return *p
}

func TestCaptureExplicitPanic(t *testing.T) {
	record := captureFrom("disk on fire")
	if record.Message != "disk on fire" {
		t.Errorf("Message = %q, want %q", record.Message, "disk on fire")
	}
	if !strings.Contains(record.Location, "crash_test.go") {
		t.Errorf("Location = %q, want it in crash_test.go", record.Location)
	}
	if len(record.Backtrace) == 0 || !strings.Contains(record.Backtrace[0], "panicsWith") {
		t.Errorf("Backtrace[0] should be the panicking function, got %v", record.Backtrace)
	}
}

func TestCaptureRuntimeFault(t *testing.T) {
	var record Record
	func() {
		defer func() { record = Capture(recover()) }()
		dereferencesNil()
	}()
	if !strings.Contains(record.Message, "nil pointer dereference") {
		t.Errorf("Message = %q, want a nil dereference", record.Message)
	}
	if len(record.Backtrace) == 0 || !strings.Contains(record.Backtrace[0], "dereferencesNil") {
		t.Errorf("Backtrace should start at the faulting function, got %v", record.Backtrace)
	}
}

func TestMessage(t *testing.T) {
	if got := Message(errors.New("bad sector")); got != "bad sector" {
		t.Errorf("Message(error) = %q", got)
	}
	if got := Message(42); got != "42" {
		t.Errorf("Message(42) = %q", got)
	}
	if got := Message(nil); got != "panic(nil)" {
		t.Errorf("Message(nil) = %q", got)
	}
}

func TestRecorder(t *testing.T) {
	recorder := &Recorder{Limit: 2}
	next := recorder.Next()
	recorder.Report(context.Background(), Record{Domain: "a"})
	testutil.RequireClosed(t, next, time.Second, "first report should close Next")

	recorder.Report(context.Background(), Record{Domain: "b"})
	recorder.Report(context.Background(), Record{Domain: "a"})
	records := recorder.Records()
	if len(records) != 2 || records[0].Domain != "b" {
		t.Fatalf("Records() = %+v, want the two most recent", records)
	}
	if len(recorder.ForDomain("a")) != 1 {
		t.Errorf("ForDomain(a) = %d records, want 1", len(recorder.ForDomain("a")))
	}
}

func TestLogReporterAndMulti(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))
	recorder := &Recorder{}
	reporter := Multi{LogReporter{Logger: logger}, nil, recorder}

	reporter.Report(context.Background(), Record{Domain: "blk-1", Method: "ReadBlock", Message: "boom"})

	if recorder.Len() != 1 {
		t.Errorf("recorder saw %d records, want 1", recorder.Len())
	}
	output := buffer.String()
	for _, want := range []string{`"msg":"domain crashed"`, `"domain":"blk-1"`, `"method":"ReadBlock"`} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %s: %s", want, output)
		}
	}
	LogReporter{}.Report(context.Background(), Record{})
}

func TestStateText(t *testing.T) {
	for _, state := range []State{Active, Inactive, Failed} {
		text, _ := state.MarshalText()
		var decoded State
		if err := decoded.UnmarshalText(text); err != nil || decoded != state {
			t.Errorf("state %s round trip = %s, %v", state, decoded, err)
		}
	}
	var state State
	if err := state.UnmarshalText([]byte("zombie")); err == nil {
		t.Error("UnmarshalText accepted an unknown state")
	}
}
