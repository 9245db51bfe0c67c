package models

import "time"

// StateVersion is the schema version written with every State
const StateVersion = 1

// State is what one run leaves behind for the next
type State struct {
	Version     int       `json:"version"`
	Fingerprint string    `json:"last_fingerprint"`
	RowCount    int       `json:"last_row_count"`
	LastCheck   time.Time `json:"last_check_timestamp"`
	RowDigests  []string  `json:"row_digests,omitempty"` // One short digest per data row, by position
	RunID       string    `json:"run_id,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
}

// ChangeResult is the outcome of comparing a Snapshot against the prior State
type ChangeResult struct {
	HasUpdates       bool
	LatestInstanceID string
	NewRecordCount   int
	NewRows          []int // Indices of new or changed rows, ascending
	FirstRun         bool
	Fingerprint      string
	RowCount         int
}

// LatestRow returns the index of the newest changed row, or -1
func (r ChangeResult) LatestRow() int {
	if len(r.NewRows) == 0 {
		return -1
	}
	return r.NewRows[len(r.NewRows)-1]
}
