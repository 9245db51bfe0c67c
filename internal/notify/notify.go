// Package notify turns a detected sheet change into user-visible items:
// a GitHub issue, a Discord message, a NATS event.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/models"
)

// maxRowsInEvent caps how many changed rows travel with an event.
const maxRowsInEvent = 10

// Notifier delivers one Event to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, e Event) error
}

// Event describes a change worth telling someone about.
type Event struct {
	SheetID   string
	SheetName string
	SheetURL  string
	CheckedAt time.Time
	Result    models.ChangeResult
	Header    []string
	Rows      [][]string // newest last, at most maxRowsInEvent
}

// NewEvent collects the changed rows of snap into an Event.
func NewEvent(sheetID, sheetName, sheetURL string, snap *models.Snapshot, result models.ChangeResult, checkedAt time.Time) Event {
	e := Event{
		SheetID:   sheetID,
		SheetName: sheetName,
		SheetURL:  sheetURL,
		CheckedAt: checkedAt,
		Result:    result,
	}
	if snap == nil {
		return e
	}
	e.Header = snap.Header
	rows := result.NewRows
	if len(rows) > maxRowsInEvent {
		rows = rows[len(rows)-maxRowsInEvent:]
	}
	for _, i := range rows {
		if i >= 0 && i < snap.Len() {
			e.Rows = append(e.Rows, snap.Rows[i])
		}
	}
	return e
}

// DedupKey identifies the notification so repeated runs do not file it
// twice: the newest row's id, or the check date when rows carry no id.
func (e Event) DedupKey() string {
	if e.Result.LatestInstanceID != "" {
		return e.Result.LatestInstanceID
	}
	return e.CheckedAt.UTC().Format(time.DateOnly)
}

// Title is the issue or message title for e.
func (e Event) Title(prefix string) string {
	if prefix == "" {
		prefix = "Sheet update"
	}
	return fmt.Sprintf("%s: %s", prefix, e.DedupKey())
}

// Multi delivers to every notifier in order. A failure does not stop the
// remaining deliveries.
type Multi struct {
	notifiers []Notifier
	observe   func(name string, err error)
}

// NewMulti fans out to notifiers. observe, if set, sees every outcome.
func NewMulti(observe func(name string, err error), notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, observe: observe}
}

func (m *Multi) Name() string { return "multi" }

// Len reports how many notifiers are configured.
func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.Notify(ctx, e)
		if m.observe != nil {
			m.observe(n.Name(), err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", sherrors.ErrNotifyFailed, errors.Join(errs...))
	}
	return nil
}

// Close closes every notifier that holds a connection.
func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if c, ok := n.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
