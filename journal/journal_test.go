// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/partition/crash"
	"github.com/bureau-foundation/partition/lib/clock"
)

func openTestJournal(t *testing.T, clk clock.Clock) *Journal {
	t.Helper()
	journal, err := Open(Config{
		Path:  filepath.Join(t.TempDir(), "crashes.db"),
		Clock: clk,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := journal.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return journal
}

func deepBacktrace(depth int) []string {
	frames := make([]string, depth)
	for i := range frames {
		frames[i] = fmt.Sprintf("github.com/bureau-foundation/partition/domains/memblk.(*Device).ReadBlock /src/partition/domains/memblk/memblk.go:%d", 100+i)
	}
	return frames
}

func TestAppendAndList(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.Fake(start)
	journal := openTestJournal(t, fake)
	ctx := context.Background()

	record := crash.Record{
		DomainID:   7,
		Domain:     "blk-1",
		Kind:       "block_device",
		Method:     "ReadBlock",
		Message:    "injected fault",
		Location:   "memblk.go:88",
		Hart:       1,
		ResumeSite: "main.read main.go:10",
		Backtrace:  deepBacktrace(40),
	}
	first, err := journal.Append(ctx, record)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	fake.Advance(time.Second)
	record.Message = "second fault"
	second, err := journal.Append(ctx, record)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second <= first {
		t.Errorf("row ids %d, %d are not increasing", first, second)
	}

	entries, err := journal.List(ctx, Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	newest := entries[0]
	if newest.Message != "second fault" || !newest.Time.Equal(start.Add(time.Second)) {
		t.Errorf("newest entry = %+v", newest.Record)
	}
	if newest.DomainID != 7 || newest.Hart != 1 || newest.ResumeSite != record.ResumeSite {
		t.Errorf("entry fields = %+v", newest.Record)
	}
	if len(newest.Backtrace) != 40 || newest.Backtrace[39] != record.Backtrace[39] {
		t.Errorf("backtrace did not survive storage: %d frames", len(newest.Backtrace))
	}
	if newest.Compression == CompressionNone || newest.StoredSize >= len(strings.Join(record.Backtrace, "\n")) {
		t.Errorf("repetitive backtrace stored with %s in %d bytes", newest.Compression, newest.StoredSize)
	}
}

func TestListFilters(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.Fake(start)
	journal := openTestJournal(t, fake)
	ctx := context.Background()

	for i, name := range []string{"blk-1", "sched", "blk-1", "blk-1"} {
		if _, err := journal.Append(ctx, crash.Record{Domain: name, Message: fmt.Sprint(i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		fake.Advance(time.Minute)
	}

	blk, err := journal.List(ctx, Query{Domain: "blk-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(blk) != 3 || blk[0].Message != "3" || blk[2].Message != "0" {
		t.Errorf("List(blk-1) = %+v", blk)
	}

	limited, err := journal.List(ctx, Query{Domain: "blk-1", Limit: 1})
	if err != nil || len(limited) != 1 || limited[0].Message != "3" {
		t.Errorf("List(limit 1) = %+v, %v", limited, err)
	}

	recent, err := journal.List(ctx, Query{Since: start.Add(90 * time.Second)})
	if err != nil || len(recent) != 2 {
		t.Errorf("List(since) = %d entries, %v; want 2", len(recent), err)
	}

	for domain, want := range map[string]int{"": 4, "blk-1": 3, "sched": 1, "log": 0} {
		count, err := journal.Count(ctx, domain)
		if err != nil || count != want {
			t.Errorf("Count(%q) = %d, %v; want %d", domain, count, err, want)
		}
	}
}

func TestReportStampsTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	journal := openTestJournal(t, clock.Fake(start))
	ctx := context.Background()

	var reporter crash.Reporter = journal
	reporter.Report(ctx, crash.Record{Domain: "log", Method: "Log"})

	entries, err := journal.List(ctx, Query{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("List = %v, %v", entries, err)
	}
	if !entries[0].Time.Equal(start) {
		t.Errorf("Time = %v, want %v", entries[0].Time, start)
	}
	if entries[0].Backtrace != nil || entries[0].Compression != CompressionNone {
		t.Errorf("empty backtrace stored as %v with %s", entries[0].Backtrace, entries[0].Compression)
	}
}

func TestPrune(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.Fake(start)
	journal := openTestJournal(t, fake)
	ctx := context.Background()

	for range 3 {
		if _, err := journal.Append(ctx, crash.Record{Domain: "blk"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		fake.Advance(time.Hour)
	}
	removed, err := journal.Prune(ctx, start.Add(90*time.Minute))
	if err != nil || removed != 2 {
		t.Errorf("Prune = %d, %v; want 2", removed, err)
	}
	if count, _ := journal.Count(ctx, ""); count != 1 {
		t.Errorf("Count after prune = %d, want 1", count)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashes.db")
	journal, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := journal.Append(context.Background(), crash.Record{Domain: "blk", Backtrace: deepBacktrace(3)}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.List(context.Background(), Query{})
	if err != nil || len(entries) != 1 || len(entries[0].Backtrace) != 3 {
		t.Errorf("after reopen List = %+v, %v", entries, err)
	}
}

func TestCompressionSelection(t *testing.T) {
	short := []byte("main.f main.go:1")
	if data, tag := compress(short); tag != CompressionNone || !bytes.Equal(data, short) {
		t.Errorf("short input compressed with %s", tag)
	}

	text := []byte(strings.Join(deepBacktrace(50), "\n"))
	data, tag := compress(text)
	if tag != CompressionZstd {
		t.Errorf("repetitive text compressed with %s, want zstd", tag)
	}
	decoded, err := decompress(data, tag, len(text))
	if err != nil || !bytes.Equal(decoded, text) {
		t.Errorf("zstd round trip failed: %v", err)
	}

	lz4Data, err := compressLZ4(text)
	if err != nil {
		t.Fatalf("compressLZ4: %v", err)
	}
	decoded, err = decompress(lz4Data, CompressionLZ4, len(text))
	if err != nil || !bytes.Equal(decoded, text) {
		t.Errorf("lz4 round trip failed: %v", err)
	}

	if _, err := decompress(short, CompressionNone, len(short)+1); err == nil {
		t.Error("size mismatch not detected")
	}
	if _, err := decompress(short, CompressionTag(9), len(short)); err == nil {
		t.Error("unknown tag accepted")
	}
}

func TestCompressionTagNames(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil || parsed != tag {
			t.Errorf("ParseCompressionTag(%q) = %v, %v", tag.String(), parsed, err)
		}
	}
	if _, err := ParseCompressionTag("brotli"); err == nil {
		t.Error("ParseCompressionTag accepted brotli")
	}
}
