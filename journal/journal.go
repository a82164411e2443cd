// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/partition/crash"
	"github.com/bureau-foundation/partition/lib/clock"
	"github.com/bureau-foundation/partition/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS crashes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	time           INTEGER NOT NULL,
	domain_id      INTEGER NOT NULL,
	domain         TEXT    NOT NULL,
	kind           TEXT    NOT NULL,
	method         TEXT    NOT NULL,
	message        TEXT    NOT NULL,
	location       TEXT    NOT NULL,
	hart           INTEGER NOT NULL,
	resume_site    TEXT    NOT NULL,
	backtrace      BLOB,
	compression    INTEGER NOT NULL,
	backtrace_size INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS crashes_domain_time ON crashes (domain, time);
`

// DefaultListLimit caps List when the query sets no limit.
const DefaultListLimit = 100

// Config holds the parameters for opening a journal.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist.
	Path string

	// Clock stamps records that arrive without a time. Defaults to the
	// real clock.
	Clock clock.Clock

	// Logger receives write failures from Report. If nil, a no-op
	// logger is used.
	Logger *slog.Logger
}

// Entry is one stored crash.
type Entry struct {
	ID int64 `json:"id"`
	crash.Record

	// Compression is how the backtrace was stored.
	Compression CompressionTag `json:"-"`

	// StoredSize is the size of the backtrace blob on disk.
	StoredSize int `json:"stored_size"`
}

// Query selects entries for List. The zero value lists the most recent
// DefaultListLimit crashes of every domain.
type Query struct {
	// Domain restricts the listing to one registry name.
	Domain string

	// Since excludes crashes before this time.
	Since time.Time

	// Limit caps the number of entries. Zero means DefaultListLimit.
	Limit int
}

// Journal is the SQLite crash store.
type Journal struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens or creates the journal database.
func Open(config Config) (*Journal, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     config.Path,
		PoolSize: 2,
		Logger:   logger,
		Schema:   schema,
	})
	if err != nil {
		return nil, fmt.Errorf("crash journal: %w", err)
	}
	return &Journal{pool: pool, clock: clk, logger: logger}, nil
}

// Close closes the database. Blocks until in-flight calls return.
func (j *Journal) Close() error {
	return j.pool.Close()
}

// Report implements crash.Reporter.
func (j *Journal) Report(ctx context.Context, record crash.Record) {
	if _, err := j.Append(ctx, record); err != nil {
		j.logger.ErrorContext(ctx, "recording crash in journal failed",
			"domain", record.Domain,
			"domain_id", record.DomainID,
			"error", err,
		)
	}
}

// Append stores record and returns its row id.
func (j *Journal) Append(ctx context.Context, record crash.Record) (int64, error) {
	if record.Time.IsZero() {
		record.Time = j.clock.Now()
	}
	backtrace := []byte(strings.Join(record.Backtrace, "\n"))
	blob, tag := compress(backtrace)

	conn, err := j.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("crash journal: append: %w", err)
	}
	defer j.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO crashes
		(time, domain_id, domain, kind, method, message, location, hart,
		 resume_site, backtrace, compression, backtrace_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.Time.UnixNano(),
				int64(record.DomainID),
				record.Domain,
				record.Kind,
				record.Method,
				record.Message,
				record.Location,
				int64(record.Hart),
				record.ResumeSite,
				blob,
				int64(tag),
				int64(len(backtrace)),
			},
		})
	if err != nil {
		return 0, fmt.Errorf("crash journal: insert: %w", err)
	}
	return conn.LastInsertRowID(), nil
}

// List returns matching entries, newest first.
func (j *Journal) List(ctx context.Context, query Query) ([]Entry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	where, args := query.filter()
	statement := `SELECT id, time, domain_id, domain, kind, method, message,
		location, hart, resume_site, backtrace, compression, backtrace_size
		FROM crashes` + where + ` ORDER BY time DESC, id DESC LIMIT ?`
	args = append(args, int64(limit))

	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("crash journal: list: %w", err)
	}
	defer j.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entry, err := scanEntry(stmt)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("crash journal: list: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored crashes for domain, or for every
// domain when domain is empty.
func (j *Journal) Count(ctx context.Context, domain string) (int, error) {
	where, args := Query{Domain: domain}.filter()

	conn, err := j.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("crash journal: count: %w", err)
	}
	defer j.pool.Put(conn)

	count := 0
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM crashes"+where, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("crash journal: count: %w", err)
	}
	return count, nil
}

// Prune deletes crashes recorded before cutoff and returns how many
// were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("crash journal: prune: %w", err)
	}
	defer j.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM crashes WHERE time < ?", &sqlitex.ExecOptions{
		Args: []any{cutoff.UnixNano()},
	})
	if err != nil {
		return 0, fmt.Errorf("crash journal: prune: %w", err)
	}
	removed := conn.Changes()
	if removed > 0 {
		j.logger.Info("pruned crash journal", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

func (q Query) filter() (string, []any) {
	var clauses []string
	var args []any
	if q.Domain != "" {
		clauses = append(clauses, "domain = ?")
		args = append(args, q.Domain)
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "time >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEntry(stmt *sqlite.Stmt) (Entry, error) {
	entry := Entry{
		ID: stmt.ColumnInt64(0),
		Record: crash.Record{
			Time:       time.Unix(0, stmt.ColumnInt64(1)).UTC(),
			DomainID:   uint64(stmt.ColumnInt64(2)),
			Domain:     stmt.ColumnText(3),
			Kind:       stmt.ColumnText(4),
			Method:     stmt.ColumnText(5),
			Message:    stmt.ColumnText(6),
			Location:   stmt.ColumnText(7),
			Hart:       stmt.ColumnInt(8),
			ResumeSite: stmt.ColumnText(9),
		},
		Compression: CompressionTag(stmt.ColumnInt(11)),
	}
	blob := make([]byte, stmt.ColumnLen(10))
	stmt.ColumnBytes(10, blob)
	entry.StoredSize = len(blob)

	backtrace, err := decompress(blob, entry.Compression, stmt.ColumnInt(12))
	if err != nil {
		return Entry{}, fmt.Errorf("crash %d backtrace: %w", entry.ID, err)
	}
	if len(backtrace) > 0 {
		entry.Backtrace = strings.Split(string(backtrace), "\n")
	}
	return entry, nil
}
