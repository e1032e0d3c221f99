package state

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS baselines (
	namespace TEXT NOT NULL,
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (namespace, kind)
);
`

// SQLiteStore implements Store using a SQLite database file.
// The database is opened per call; a tracker touches it at most twice per run.
type SQLiteStore struct {
	path string
}

// NewSQLiteStore creates a SQLite-backed store for path. Nothing is opened until used.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Load reads every baseline through a read-only connection. A missing database, or one
// without the baselines table, yields an empty RecordSet; nothing is created.
func (s *SQLiteStore) Load() (*RecordSet, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return NewRecordSet(), nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat tracking database").
			WithContext("path", s.path).
			Build()
	}

	db, err := sql.Open("sqlite", s.readOnlyDSN())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open tracking database").
			WithContext("path", s.path).
			Build()
	}
	defer func() { _ = db.Close() }()

	var tables int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'baselines'").Scan(&tables)
	if err != nil {
		return nil, s.corrupt(err)
	}
	if tables == 0 {
		return NewRecordSet(), nil
	}

	rows, err := db.Query("SELECT namespace, kind, value FROM baselines")
	if err != nil {
		return nil, s.corrupt(err)
	}
	defer func() { _ = rows.Close() }()

	records := NewRecordSet()
	for rows.Next() {
		var ns, kind, value string
		if err := rows.Scan(&ns, &kind, &value); err != nil {
			return nil, s.corrupt(err)
		}
		switch Kind(kind) {
		case KindTimestamp:
			t, err := ParseTimestamp(value)
			if err != nil {
				return nil, s.corrupt(fmt.Errorf("timestamp for namespace %q: %w", ns, err))
			}
			records.Timestamps[ns] = t
		case KindCommit:
			records.Commits[ns] = value
		default:
			return nil, s.corrupt(fmt.Errorf("unknown baseline kind %q for namespace %q", kind, ns))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.corrupt(err)
	}
	return records, nil
}

// SaveTimestamp upserts the timestamp baseline for namespace.
func (s *SQLiteStore) SaveTimestamp(namespace string, t time.Time) error {
	return s.upsert(namespace, KindTimestamp, FormatTimestamp(t))
}

// SaveCommit upserts the commit baseline for namespace.
func (s *SQLiteStore) SaveCommit(namespace, commit string) error {
	return s.upsert(namespace, KindCommit, commit)
}

func (s *SQLiteStore) upsert(namespace string, kind Kind, value string) error {
	_, statErr := os.Stat(s.path)
	existed := statErr == nil

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create tracking database directory").
				WithContext("path", s.path).
				Build()
		}
	}

	db, err := s.openWritable(existed)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.Exec(
		`INSERT INTO baselines (namespace, kind, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, kind) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, string(kind), value, FormatTimestamp(time.Now()),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write baseline").
			WithContext("path", s.path).
			WithContext("namespace", namespace).
			Build()
	}
	return nil
}

// readOnlyDSN returns a file: URI that opens the database with mode=ro.
func (s *SQLiteStore) readOnlyDSN() string {
	p := s.path
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: "mode=ro"}
	return u.String()
}

// openWritable opens the database and ensures the schema. When the file already
// existed a schema failure means it is not a tracking database.
func (s *SQLiteStore) openWritable(existed bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open tracking database").
			WithContext("path", s.path).
			Build()
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		if existed {
			return nil, s.corrupt(err)
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to initialize tracking database").
			WithContext("path", s.path).
			Build()
	}
	return db, nil
}

func (s *SQLiteStore) corrupt(err error) error {
	return errors.WrapError(err, errors.CategoryCorruptState, "tracking database cannot be read").
		WithContext("path", s.path).
		Build()
}
