package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Cells come from a public sheet anyone may edit.
var strictPolicy = bluemonday.StrictPolicy()

func sanitizeCell(s string) string {
	s = strictPolicy.Sanitize(s)
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// IssueBody renders e as GitHub-flavoured markdown.
func IssueBody(e Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New records were detected in sheet **%s**.\n\n", sanitizeCell(e.SheetName))
	if e.SheetURL != "" {
		fmt.Fprintf(&b, "- Sheet: %s\n", e.SheetURL)
	}
	if e.Result.LatestInstanceID != "" {
		fmt.Fprintf(&b, "- Latest instance: `%s`\n", strings.ReplaceAll(sanitizeCell(e.Result.LatestInstanceID), "`", "'"))
	}
	fmt.Fprintf(&b, "- New or changed rows: %d\n", e.Result.NewRecordCount)
	// Zero means unknown, as when notify runs from an earlier check's outputs
	if e.Result.RowCount > 0 {
		fmt.Fprintf(&b, "- Total rows: %d\n", e.Result.RowCount)
	}
	fmt.Fprintf(&b, "- Checked at: %s\n", e.CheckedAt.UTC().Format(time.RFC3339))

	if len(e.Header) > 0 && len(e.Rows) > 0 {
		b.WriteString("\n")
		writeRow(&b, e.Header)
		b.WriteString("|" + strings.Repeat(" --- |", len(e.Header)) + "\n")
		for _, row := range e.Rows {
			writeRow(&b, row)
		}
		if e.Result.NewRecordCount > len(e.Rows) {
			fmt.Fprintf(&b, "\n_Showing the newest %d of %d rows._\n", len(e.Rows), e.Result.NewRecordCount)
		}
	}

	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" " + sanitizeCell(c) + " |")
	}
	b.WriteString("\n")
}
