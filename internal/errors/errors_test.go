package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{
			name:     "direct not public error",
			err:      ErrNotPublic,
			sentinel: ErrNotPublic,
			want:     true,
		},
		{
			name:     "wrapped not found error",
			err:      fmt.Errorf("fetch sheet: %w", ErrSheetNotFound),
			sentinel: ErrSheetNotFound,
			want:     true,
		},
		{
			name:     "access kinds are distinct",
			err:      ErrNotPublic,
			sentinel: ErrSheetNotFound,
			want:     false,
		},
		{
			name:     "joined errors keep both kinds",
			err:      errors.Join(ErrStateWrite, ErrStateConflict),
			sentinel: ErrStateConflict,
			want:     true,
		},
		{
			name:     "nil error",
			err:      nil,
			sentinel: ErrInvalidConfig,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.sentinel)
			if got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.sentinel, got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidConfig, "invalid configuration"},
		{ErrNotPublic, "sheet is not shared publicly"},
		{ErrSheetNotFound, "sheet not found"},
		{ErrMalformedCSV, "malformed csv"},
		{ErrResponseTooLarge, "sheet export too large"},
		{ErrStateConflict, "state was modified concurrently"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
