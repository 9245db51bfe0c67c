// Package errors defines sentinel errors shared across sheetwatch.
// The CLI maps each one to a distinct exit code so schedulers can branch on
// the kind of failure.
package errors

import "errors"

var (
	// ErrInvalidConfig indicates missing or malformed configuration.
	// Raised before any network call is made.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotPublic indicates the sheet exists but is not shared publicly.
	ErrNotPublic = errors.New("sheet is not shared publicly")

	// ErrSheetNotFound indicates the sheet id or tab name does not resolve.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrUnexpectedStatus indicates the export endpoint answered with a
	// status that is neither success nor a known access failure.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrNetworkFailure indicates the export endpoint could not be reached.
	ErrNetworkFailure = errors.New("network connection failed")

	// ErrMalformedCSV indicates the export body could not be parsed.
	ErrMalformedCSV = errors.New("malformed csv")

	// ErrResponseTooLarge indicates the export body exceeded the size limit
	// and was not parsed.
	ErrResponseTooLarge = errors.New("sheet export too large")

	// ErrStateCorrupt indicates the persisted state could not be decoded or
	// failed its integrity check.
	ErrStateCorrupt = errors.New("state is corrupted")

	// ErrStateWrite indicates the persisted state could not be written.
	ErrStateWrite = errors.New("failed to write state")

	// ErrStateConflict indicates another run replaced the state between our
	// read and our write.
	ErrStateConflict = errors.New("state was modified concurrently")

	// ErrNotifyFailed indicates at least one notifier failed.
	ErrNotifyFailed = errors.New("notification failed")
)
