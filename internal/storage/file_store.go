package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/models"
)

// DefaultStateFile is the state path used when none is configured.
const DefaultStateFile = "sheets_state.json"

// FileStore keeps state in a local JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultStateFile
	}
	return &FileStore{path: path}
}

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (*models.State, Revision, error) {
	data, rev, err := s.read()
	if err != nil || rev == "" {
		return nil, rev, err
	}

	state, err := Decode(data)
	if err != nil {
		return nil, rev, fmt.Errorf("state file %s: %w", s.path, err)
	}
	return state, rev, nil
}

// Save takes an advisory lock, verifies the file still holds the revision
// that was loaded, then replaces it via temp file and rename.
func (s *FileStore) Save(ctx context.Context, state *models.State, expected Revision) error {
	data, err := Encode(state)
	if err != nil {
		return fmt.Errorf("%v: %w", err, sherrors.ErrStateWrite)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %v: %w", err, sherrors.ErrStateWrite)
	}

	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("failed to lock state file: %v: %w", err, sherrors.ErrStateWrite)
	}
	defer unlock()

	_, current, err := s.read()
	if err != nil {
		return fmt.Errorf("failed to re-read state file: %v: %w", err, sherrors.ErrStateWrite)
	}
	if current != expected {
		return fmt.Errorf("state file %s changed since it was read: %w", s.path, sherrors.ErrStateConflict)
	}

	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%v: %w", err, sherrors.ErrStateWrite)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() ([]byte, Revision, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}
	return data, contentRevision(data), nil
}

func writeAtomic(path string, data []byte) error {
	tempFile := path + ".tmp"

	file, err := os.OpenFile(tempFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to sync temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to close temporary state file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary state file: %w", err)
	}
	return nil
}
