package detect

import (
	"time"

	"github.com/pmurley/sheetwatch/internal/models"
)

// Options tunes Compare
type Options struct {
	// IDColumn names the column whose value identifies a row in
	// notifications. Empty means rows carry no identifier.
	IDColumn string
	// NotifyOnFirstRun reports the baseline snapshot as an update when no
	// prior state exists. When false the first run only records a baseline.
	NotifyOnFirstRun bool
}

// Compare fingerprints snap, compares it with prior (nil on first run) and
// returns the change result together with the state to persist. The
// returned state always reflects snap, whether or not anything changed.
func Compare(snap *models.Snapshot, prior *models.State, opts Options, now time.Time) (models.ChangeResult, *models.State) {
	fingerprint := Fingerprint(snap)
	digests := RowDigests(snap)

	next := &models.State{
		Version:     models.StateVersion,
		Fingerprint: fingerprint,
		RowCount:    snap.Len(),
		LastCheck:   now.UTC(),
		RowDigests:  digests,
	}

	result := models.ChangeResult{
		Fingerprint: fingerprint,
		RowCount:    snap.Len(),
	}

	switch {
	case prior == nil || prior.Fingerprint == "":
		result.FirstRun = true
		if !opts.NotifyOnFirstRun {
			return result, next
		}
		result.NewRows = allRows(snap.Len())
	case prior.Fingerprint == fingerprint:
		return result, next
	default:
		result.NewRows = changedRows(digests, prior)
	}

	result.HasUpdates = true
	result.NewRecordCount = len(result.NewRows)
	if latest := result.LatestRow(); latest >= 0 && opts.IDColumn != "" {
		result.LatestInstanceID, _ = snap.Value(latest, opts.IDColumn)
	}
	return result, next
}

// changedRows lists rows that differ from the prior run at the same
// position or lie beyond its row count. Legacy state without digests can
// only tell the rows past the old count.
func changedRows(current []string, prior *models.State) []int {
	var rows []int
	if len(prior.RowDigests) == 0 {
		for i := prior.RowCount; i < len(current); i++ {
			rows = append(rows, i)
		}
		return rows
	}
	for i, d := range current {
		if i >= len(prior.RowDigests) || prior.RowDigests[i] != d {
			rows = append(rows, i)
		}
	}
	return rows
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
