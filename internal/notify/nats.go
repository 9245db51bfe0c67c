package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// publisher is the part of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// UpdateMessage is the JSON payload published for each event.
type UpdateMessage struct {
	SheetID          string     `json:"sheet_id"`
	SheetName        string     `json:"sheet_name"`
	SheetURL         string     `json:"sheet_url,omitempty"`
	LatestInstanceID string     `json:"latest_instance_id,omitempty"`
	NewRecordCount   int        `json:"new_records_count"`
	TotalRows        int        `json:"total_rows"`
	FirstRun         bool       `json:"first_run"`
	Fingerprint      string     `json:"fingerprint"`
	CheckedAt        time.Time  `json:"checked_at"`
	Header           []string   `json:"header,omitempty"`
	Rows             [][]string `json:"rows,omitempty"`
}

// NATS publishes events to a subject on a core NATS connection.
type NATS struct {
	conn    publisher
	closer  func()
	subject string
}

// NewNATS connects to url. Close drains the connection.
func NewNATS(url, subject string, opts ...nats.Option) (*NATS, error) {
	opts = append([]nats.Option{nats.Name("sheetwatch")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	closer := func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return &NATS{conn: nc, closer: closer, subject: subject}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Notify(ctx context.Context, e Event) error {
	data, err := json.Marshal(newUpdateMessage(e))
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.subject, err)
	}
	// Flush so a one-shot run does not exit before the server has the message
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}

func (n *NATS) Close() error {
	if n.closer != nil {
		n.closer()
	}
	return nil
}

func newUpdateMessage(e Event) UpdateMessage {
	return UpdateMessage{
		SheetID:          e.SheetID,
		SheetName:        e.SheetName,
		SheetURL:         e.SheetURL,
		LatestInstanceID: e.Result.LatestInstanceID,
		NewRecordCount:   e.Result.NewRecordCount,
		TotalRows:        e.Result.RowCount,
		FirstRun:         e.Result.FirstRun,
		Fingerprint:      e.Result.Fingerprint,
		CheckedAt:        e.CheckedAt.UTC(),
		Header:           e.Header,
		Rows:             e.Rows,
	}
}
