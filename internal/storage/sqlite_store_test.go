package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
)

func openTestSQLite(t *testing.T, path, key string) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(context.Background(), path, key)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTripAndConflict(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	store := openTestSQLite(t, path, "abc/Sheet1")

	state, rev, err := store.Load(ctx)
	if err != nil || state != nil || rev != "" {
		t.Fatalf("Load() on empty db = %v, %q, %v", state, rev, err)
	}

	if err := store.Save(ctx, sampleState(), ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, sampleState(), ""); !errors.Is(err, sherrors.ErrStateConflict) {
		t.Errorf("second insert error = %v, want ErrStateConflict", err)
	}

	loaded, rev, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.RowCount != 3 {
		t.Errorf("RowCount = %d", loaded.RowCount)
	}

	next := sampleState()
	next.RowCount = 5
	if err := store.Save(ctx, next, rev); err != nil {
		t.Fatalf("Save() with current revision error = %v", err)
	}
	if err := store.Save(ctx, next, rev); !errors.Is(err, sherrors.ErrStateConflict) {
		t.Errorf("Save() with stale revision error = %v, want ErrStateConflict", err)
	}
}

func TestSQLiteStore_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	a := openTestSQLite(t, path, "abc/Sheet1")
	b := openTestSQLite(t, path, "abc/Sheet2")

	if err := a.Save(ctx, sampleState(), ""); err != nil {
		t.Fatal(err)
	}
	state, _, err := b.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state != nil {
		t.Error("other key should have no state")
	}
}

func TestSQLiteStore_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t, filepath.Join(t.TempDir(), "state.db"), "k")

	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO sheet_state (sheet_key, payload, revision, updated_at) VALUES ('k', 'nope', 'r1', 'now')`); err != nil {
		t.Fatal(err)
	}

	_, rev, err := store.Load(ctx)
	if !errors.Is(err, sherrors.ErrStateCorrupt) {
		t.Fatalf("Load() error = %v, want ErrStateCorrupt", err)
	}
	if err := store.Save(ctx, sampleState(), rev); err != nil {
		t.Errorf("overwriting corrupt state: %v", err)
	}
}
