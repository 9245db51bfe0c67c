package storage

import (
	"context"
	"fmt"
	"strings"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend
type Options struct {
	Backend    string
	FilePath   string
	SQLitePath string
	Key        string // Row key for shared backends, "<sheet id>/<tab>"
	S3         S3Options
}

// Open returns the Store selected by opts.Backend (file by default).
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		return NewFileStore(opts.FilePath), nil
	case BackendS3:
		s, err := NewS3Store(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := OpenSQLiteStore(ctx, opts.SQLitePath, opts.Key)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q: %w", opts.Backend, sherrors.ErrInvalidConfig)
	}
}
