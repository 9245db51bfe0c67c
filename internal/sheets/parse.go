package sheets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/models"
)

// ParseError describes where a CSV export stopped making sense.
// Row is the 1-based data row (0 for the header), Column is 1-based or 0
// when the whole row is at fault.
type ParseError struct {
	Row    int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	where := "header"
	if e.Row > 0 {
		where = fmt.Sprintf("row %d", e.Row)
	}
	if e.Column > 0 {
		where += fmt.Sprintf(", column %d", e.Column)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{e.Err, sherrors.ErrMalformedCSV}
}

var errMissingHeader = errors.New("missing header row")

// ParseSnapshot reads a CSV export. The first record is the header; every
// following record must have exactly as many fields.
func ParseSnapshot(r io.Reader) (*models.Snapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // width is checked below so the error can name the row

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Err: errMissingHeader}
	}
	if err != nil {
		return nil, wrapCSVError(0, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	snapshot := &models.Snapshot{Header: header}

	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapCSVError(row, err)
		}
		if len(record) != len(header) {
			return nil, &ParseError{
				Row: row,
				Err: fmt.Errorf("has %d fields, header has %d", len(record), len(header)),
			}
		}
		snapshot.Rows = append(snapshot.Rows, record)
	}

	return snapshot, nil
}

func wrapCSVError(row int, err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Row: row, Column: csvErr.Column, Err: csvErr.Err}
	}
	return &ParseError{Row: row, Err: err}
}

// Summary is a human readable description of a Snapshot
type Summary struct {
	Rows     int
	Columns  []string
	FirstRow map[string]string
}

// Describe summarises a snapshot for connection checks
func Describe(s *models.Snapshot) Summary {
	return Summary{
		Rows:     s.Len(),
		Columns:  s.Header,
		FirstRow: s.Record(0),
	}
}
