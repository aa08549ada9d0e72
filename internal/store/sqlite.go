package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/rbright/rehearse/internal/api"
)

//go:embed schema.sql
var schema string

// DB is the SQLite-backed store.
type DB struct {
	db   *sqlx.DB
	path string
	now  func() time.Time
}

// Open creates (if needed) and migrates the database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure store %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &DB{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Close closes the connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Scope returns a KV view restricted to namespace.
func (d *DB) Scope(namespace string) *Scope {
	return &Scope{db: d, namespace: namespace}
}

// Scope is a namespaced KV backed by the kv table.
type Scope struct {
	db        *DB
	namespace string
}

func (s *Scope) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.db.GetContext(ctx, &value,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, s.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s/%s: %w", s.namespace, key, err)
	}
	return value, true, nil
}

func (s *Scope) Set(ctx context.Context, key string, value string) error {
	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, key, value, s.db.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

func (s *Scope) Delete(ctx context.Context, key string) error {
	if _, err := s.db.db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ? AND key = ?`, s.namespace, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

func (s *Scope) Clear(ctx context.Context) error {
	if _, err := s.db.db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("clear %s: %w", s.namespace, err)
	}
	return nil
}

type reportRow struct {
	SessionID string `db:"session_id"`
	Payload   string `db:"payload"`
	FetchedAt string `db:"fetched_at"`
}

// SaveReport caches a fetched report. Reports are immutable, so an existing
// entry is replaced only by a newer fetch of the same content.
func (d *DB) SaveReport(ctx context.Context, sessionID string, report api.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = d.db.NamedExecContext(ctx,
		`INSERT INTO reports (session_id, payload, fetched_at) VALUES (:session_id, :payload, :fetched_at)
		 ON CONFLICT (session_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		reportRow{SessionID: sessionID, Payload: string(payload), FetchedAt: d.now().UTC().Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("save report %s: %w", sessionID, err)
	}
	return nil
}

// LoadReport returns a cached report.
func (d *DB) LoadReport(ctx context.Context, sessionID string) (api.Report, bool, error) {
	var row reportRow
	err := d.db.GetContext(ctx, &row,
		`SELECT session_id, payload, fetched_at FROM reports WHERE session_id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Report{}, false, nil
	}
	if err != nil {
		return api.Report{}, false, fmt.Errorf("load report %s: %w", sessionID, err)
	}

	var report api.Report
	if err := json.Unmarshal([]byte(row.Payload), &report); err != nil {
		return api.Report{}, false, fmt.Errorf("decode cached report %s: %w", sessionID, err)
	}
	return report, true, nil
}

// CachedReports lists cached report ids, newest first.
func (d *DB) CachedReports(ctx context.Context) ([]string, error) {
	var ids []string
	if err := d.db.SelectContext(ctx, &ids,
		`SELECT session_id FROM reports ORDER BY fetched_at DESC, session_id`); err != nil {
		return nil, fmt.Errorf("list cached reports: %w", err)
	}
	return ids, nil
}
