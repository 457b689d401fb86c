// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history provides SQLite-backed storage of completed SDK call
// invocations, so recent operations can be inspected through the API
// without a tracing backend.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed invocation.
type Record struct {
	// ID is assigned by the store.
	ID int64 `json:"id"`

	// TraceID is the OpenTelemetry trace ID as 32 hex digits.
	TraceID string `json:"trace_id"`

	// XRayTraceID is the X-Ray formatted trace ID, when available.
	XRayTraceID string `json:"xray_trace_id,omitempty"`

	// Operation names the SDK operation (e.g. "list_buckets").
	Operation string `json:"operation"`

	// Status is "ok" or "error".
	Status string `json:"status"`

	// Detail holds the error message for failed invocations.
	Detail string `json:"detail,omitempty"`

	// BucketCount is the number of buckets returned.
	BucketCount int `json:"bucket_count"`

	// DurationMs is the invocation duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// StartedAt is when the invocation began.
	StartedAt time.Time `json:"started_at"`
}

// Store persists invocation records in SQLite.
type Store struct {
	db *sql.DB
}

// Config contains store configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
}

// New creates a new SQLite-backed store and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// WAL mode allows concurrent readers while one invocation writes.
	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			xray_trace_id TEXT,
			operation TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			bucket_count INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_started_at ON operations(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Insert stores one invocation record and fills in its ID.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if rec.Operation == "" {
		return fmt.Errorf("record operation is required")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (trace_id, xray_trace_id, operation, status, detail, bucket_count, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.XRayTraceID, rec.Operation, rec.Status, rec.Detail,
		rec.BucketCount, rec.DurationMs, rec.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trace_id, xray_trace_id, operation, status, detail, bucket_count, duration_ms, started_at
		 FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var startedAt int64
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.XRayTraceID, &rec.Operation,
			&rec.Status, &rec.Detail, &rec.BucketCount, &rec.DurationMs, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.StartedAt = time.Unix(0, startedAt).UTC()
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
