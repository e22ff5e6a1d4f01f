package progress

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

const statusColumns = "folder, progress, step, message, substep, state, video_url, error_kind, request_id, updated_at"

// SQLiteStore persists statuses in a WAL-mode SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure progress directory: %w", err)
	}
	dsn := "file:" + path + "?" + url.Values{"_pragma": {
		"journal_mode(WAL)",
		"busy_timeout(5000)",
		"synchronous(NORMAL)",
	}}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, status Status) error {
	updated := status.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_progress (`+statusColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(folder) DO UPDATE SET
            progress = excluded.progress,
            step = excluded.step,
            message = excluded.message,
            substep = excluded.substep,
            state = excluded.state,
            video_url = excluded.video_url,
            error_kind = excluded.error_kind,
            request_id = excluded.request_id,
            updated_at = excluded.updated_at`,
		key,
		status.Progress,
		status.Step,
		status.Message,
		status.Substep,
		string(status.State),
		nullableString(status.VideoURL),
		nullableString(status.ErrorKind),
		nullableString(status.RequestID),
		updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert progress %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Status, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+statusColumns+" FROM run_progress WHERE folder = ?", key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Status{}, false, nil
	}
	if err != nil {
		return Status{}, false, fmt.Errorf("get progress %s: %w", key, err)
	}
	return entry.Status, true, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+statusColumns+" FROM run_progress ORDER BY folder")
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry      Entry
		state      string
		videoURL   sql.NullString
		errorKind  sql.NullString
		requestID  sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(
		&entry.Key,
		&entry.Status.Progress,
		&entry.Status.Step,
		&entry.Status.Message,
		&entry.Status.Substep,
		&state,
		&videoURL,
		&errorKind,
		&requestID,
		&updatedRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.Status.State = State(state)
	entry.Status.VideoURL = videoURL.String
	entry.Status.ErrorKind = errorKind.String
	entry.Status.RequestID = requestID.String
	if ts, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		entry.Status.UpdatedAt = ts
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
