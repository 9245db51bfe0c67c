package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// SQLiteStore keeps state for one sheet tab in a SQLite table, keyed so
// several watched sheets can share a database file.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// OpenSQLiteStore opens (and migrates) the database at path.
func OpenSQLiteStore(ctx context.Context, path, key string) (*SQLiteStore, error) {
	if path == "" || key == "" {
		return nil, fmt.Errorf("sqlite state needs a path and key: %w", sherrors.ErrInvalidConfig)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure %s: %w", path, err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}

	return &SQLiteStore{db: db, key: key}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.State, Revision, error) {
	var payload, revision string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, revision FROM sheet_state WHERE sheet_key = ?`, s.key).Scan(&payload, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load state %q: %w", s.key, err)
	}

	rev := Revision(revision)
	state, err := Decode([]byte(payload))
	if err != nil {
		return nil, rev, fmt.Errorf("state %q: %w", s.key, err)
	}
	return state, rev, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state *models.State, expected Revision) error {
	data, err := Encode(state)
	if err != nil {
		return fmt.Errorf("%v: %w", err, sherrors.ErrStateWrite)
	}
	rev := contentRevision(data)
	now := time.Now().UTC().Format(time.RFC3339)

	var res sql.Result
	if expected == "" {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO sheet_state (sheet_key, payload, revision, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (sheet_key) DO NOTHING`,
			s.key, string(data), string(rev), now)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE sheet_state SET payload = ?, revision = ?, updated_at = ?
			 WHERE sheet_key = ? AND revision = ?`,
			string(data), string(rev), now, s.key, string(expected))
	}
	if err != nil {
		return fmt.Errorf("failed to save state %q: %v: %w", s.key, err, sherrors.ErrStateWrite)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save state %q: %v: %w", s.key, err, sherrors.ErrStateWrite)
	}
	if n == 0 {
		return fmt.Errorf("state %q changed since it was read: %w", s.key, sherrors.ErrStateConflict)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
