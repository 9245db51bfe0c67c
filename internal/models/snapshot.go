package models

import "strings"

// Snapshot is the parsed content of one sheet tab at a point in time
type Snapshot struct {
	Header []string   // Column names, taken from the first CSV row
	Rows   [][]string // Data rows, each exactly len(Header) wide
}

// Len returns the number of data rows
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
// Matching ignores surrounding whitespace and case.
func (s *Snapshot) ColumnIndex(name string) int {
	if s == nil {
		return -1
	}
	want := strings.TrimSpace(name)
	if want == "" {
		return -1
	}
	for i, h := range s.Header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i
		}
	}
	return -1
}

// Record returns row i as a column -> value map
func (s *Snapshot) Record(i int) map[string]string {
	if s == nil || i < 0 || i >= len(s.Rows) {
		return nil
	}
	rec := make(map[string]string, len(s.Header))
	for col, name := range s.Header {
		if _, dup := rec[name]; dup {
			continue // first column wins on duplicate headers
		}
		rec[name] = s.Rows[i][col]
	}
	return rec
}

// Value returns the cell of row i in the named column
func (s *Snapshot) Value(i int, column string) (string, bool) {
	col := s.ColumnIndex(column)
	if col < 0 || i < 0 || i >= s.Len() {
		return "", false
	}
	return s.Rows[i][col], true
}
