// Package detect decides whether a sheet changed since the last run and
// which row is the newest. It does no I/O: state comes in and goes out as
// values, and the caller decides where it lives.
package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/pmurley/sheetwatch/internal/models"
)

// rowDigestLen is the number of hex characters kept per row digest.
const rowDigestLen = 32

// Fingerprint returns a SHA-256 digest over the header and every row.
// JSON framing keeps cell boundaries unambiguous, so "a,b" | "c" and
// "a" | "b,c" hash differently.
func Fingerprint(s *models.Snapshot) string {
	table := make([][]string, 0, s.Len()+1)
	if s != nil {
		table = append(table, nonNil(s.Header))
		table = append(table, s.Rows...)
	}
	return digest(table)
}

// RowDigests returns a short digest for each data row, by position.
func RowDigests(s *models.Snapshot) []string {
	digests := make([]string, s.Len())
	for i := range digests {
		digests[i] = digest(s.Rows[i])[:rowDigestLen]
	}
	return digests
}

func digest(v any) string {
	// Marshalling [][]string and []string cannot fail.
	data, _ := json.Marshal(v)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
