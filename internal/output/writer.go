// Package output publishes run results as key=value pairs for the
// scheduler that invoked us.
package output

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pmurley/sheetwatch/internal/models"
)

// Pair is one named output value.
type Pair struct {
	Key   string
	Value string
}

// Writer prints pairs to stdout and, when actionsFile is set, appends them
// to the GitHub Actions output file.
type Writer struct {
	stdout      io.Writer
	actionsFile string
}

func NewWriter(stdout io.Writer, actionsFile string) *Writer {
	return &Writer{stdout: stdout, actionsFile: actionsFile}
}

// ResultPairs renders a change result into the outputs the notifier step
// branches on.
func ResultPairs(r models.ChangeResult, checkedAt time.Time) []Pair {
	return []Pair{
		{Key: "has_updates", Value: strconv.FormatBool(r.HasUpdates)},
		{Key: "latest_instance_id", Value: r.LatestInstanceID},
		{Key: "new_records_count", Value: strconv.Itoa(r.NewRecordCount)},
		{Key: "total_rows", Value: strconv.Itoa(r.RowCount)},
		{Key: "last_check", Value: checkedAt.UTC().Format(time.RFC3339)},
	}
}

func (w *Writer) Write(pairs []Pair) error {
	var buf strings.Builder
	for _, p := range pairs {
		buf.WriteString(formatPair(p))
	}

	if w.stdout != nil {
		if _, err := io.WriteString(w.stdout, buf.String()); err != nil {
			return fmt.Errorf("failed to write outputs: %w", err)
		}
	}

	if w.actionsFile == "" {
		return nil
	}
	f, err := os.OpenFile(w.actionsFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open actions output file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(buf.String()); err != nil {
		return fmt.Errorf("failed to write actions output file: %w", err)
	}
	return nil
}

// formatPair uses the heredoc form for values that contain newlines.
func formatPair(p Pair) string {
	if !strings.ContainsAny(p.Value, "\r\n") {
		return p.Key + "=" + p.Value + "\n"
	}
	delim := "EOF_" + randomHex()
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", p.Key, delim, p.Value, delim)
}

func randomHex() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
