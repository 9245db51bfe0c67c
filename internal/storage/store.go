// Package storage persists the state one run leaves for the next.
//
// Every backend implements compare-and-swap: Load returns a Revision that
// identifies what was read, and Save refuses to write when the stored
// state no longer matches it. Two overlapping runs therefore cannot both
// commit; the loser fails with ErrStateConflict.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/models"
)

// Revision identifies a stored state. The empty revision means "nothing
// stored yet".
type Revision string

// Store loads and saves the persisted state.
type Store interface {
	// Load returns the stored state and its revision. A missing state is
	// (nil, "", nil). A corrupt state is (nil, rev, ErrStateCorrupt) so
	// the caller can still overwrite it.
	Load(ctx context.Context) (*models.State, Revision, error)

	// Save writes state if the stored revision still equals expected.
	Save(ctx context.Context, state *models.State, expected Revision) error

	Close() error
}

// Encode serialises state with an integrity checksum.
func Encode(state *models.State) ([]byte, error) {
	s := *state
	s.Version = models.StateVersion
	s.Checksum = ""

	checksum, err := checksumOf(&s)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}
	s.Checksum = checksum

	data, err := json.MarshalIndent(&s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses data written by Encode and verifies version and checksum.
func Decode(data []byte) (*models.State, error) {
	var s models.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v: %w", err, sherrors.ErrStateCorrupt)
	}

	if s.Version != models.StateVersion {
		return nil, fmt.Errorf("version %d is incompatible with %d: %w",
			s.Version, models.StateVersion, sherrors.ErrStateCorrupt)
	}

	saved := s.Checksum
	s.Checksum = ""
	calculated, err := checksumOf(&s)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}
	if saved != calculated {
		return nil, fmt.Errorf("checksum mismatch: %w", sherrors.ErrStateCorrupt)
	}
	s.Checksum = saved

	return &s, nil
}

// checksumOf hashes the JSON form of state; the Checksum field must be empty.
func checksumOf(state *models.State) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// contentRevision derives a revision from the stored bytes.
func contentRevision(data []byte) Revision {
	sum := sha256.Sum256(data)
	return Revision(hex.EncodeToString(sum[:]))
}
