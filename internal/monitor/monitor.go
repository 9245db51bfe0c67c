// Package monitor runs the fetch, compare, persist and notify pipeline for
// one sheet tab.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pmurley/sheetwatch/internal/detect"
	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/metrics"
	"github.com/pmurley/sheetwatch/internal/models"
	"github.com/pmurley/sheetwatch/internal/notify"
	"github.com/pmurley/sheetwatch/internal/storage"
	"github.com/pmurley/sheetwatch/internal/telemetry"
	"github.com/pmurley/sheetwatch/pkg/logger"
)

// Fetcher downloads one tab of a spreadsheet
type Fetcher interface {
	FetchSnapshot(ctx context.Context, spreadsheetID, sheetName string) (*models.Snapshot, error)
}

// Options names the sheet being watched and how to compare it
type Options struct {
	SheetID   string
	SheetName string
	SheetURL  string
	Detect    detect.Options
}

// Report is what one check produced
type Report struct {
	Result    models.ChangeResult
	CheckedAt time.Time
	RunID     string
	Snapshot  *models.Snapshot
}

type Monitor struct {
	opts     Options
	fetcher  Fetcher
	store    storage.Store
	notifier notify.Notifier
	metrics  *metrics.Recorder
	logger   *logger.Logger
	now      func() time.Time

	// mu serialises passes so watch mode never overlaps itself
	mu sync.Mutex

	statusMu    sync.RWMutex
	lastSuccess time.Time
	lastErr     error
}

// New wires a Monitor. notifier and rec may be nil.
func New(opts Options, fetcher Fetcher, store storage.Store, notifier notify.Notifier, rec *metrics.Recorder, log *logger.Logger) *Monitor {
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	if log == nil {
		log = logger.Nop()
	}
	if notifier == nil {
		notifier = notify.NewMulti(nil)
	}
	return &Monitor{
		opts:     opts,
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
		metrics:  rec,
		logger:   log,
		now:      time.Now,
	}
}

// Check fetches the sheet, compares it with the stored state and saves the
// new state. It never notifies.
func (m *Monitor) Check(ctx context.Context) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(ctx)
}

// Run is Check followed by a notification when there are updates
func (m *Monitor) Run(ctx context.Context) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, err := m.check(ctx)
	if err != nil {
		return nil, err
	}
	if !report.Result.HasUpdates {
		return report, nil
	}

	event := notify.NewEvent(m.opts.SheetID, m.opts.SheetName, m.opts.SheetURL, report.Snapshot, report.Result, report.CheckedAt)
	if err := m.Notify(ctx, event); err != nil {
		return report, err
	}
	return report, nil
}

// Notify delivers e to the configured notifiers
func (m *Monitor) Notify(ctx context.Context, e notify.Event) error {
	if multi, ok := m.notifier.(*notify.Multi); ok && multi.Len() == 0 {
		m.logger.Info("Updates found but no notifier is configured")
		return nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "sheetwatch.notify",
		trace.WithAttributes(attribute.String("sheetwatch.dedup_key", e.DedupKey())))
	defer span.End()

	if err := m.notifier.Notify(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	m.logger.Info("Notification sent for ", e.DedupKey())
	return nil
}

// Status reports the time of the last successful pass and the error of
// the last pass, if it failed.
func (m *Monitor) Status() (time.Time, error) {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.lastSuccess, m.lastErr
}

func (m *Monitor) check(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()

	ctx, span := telemetry.Tracer().Start(ctx, "sheetwatch.check", trace.WithAttributes(
		attribute.String("sheetwatch.sheet_id", m.opts.SheetID),
		attribute.String("sheetwatch.sheet_name", m.opts.SheetName),
		attribute.String("sheetwatch.run_id", runID),
	))
	defer span.End()

	report, err := m.runCheck(ctx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.CheckFailed()
		m.setStatus(time.Time{}, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("sheetwatch.has_updates", report.Result.HasUpdates),
		attribute.Int("sheetwatch.rows", report.Result.RowCount),
	)
	m.metrics.CheckSucceeded(report.Result.RowCount, report.Result.HasUpdates, report.CheckedAt)
	m.setStatus(report.CheckedAt, nil)
	return report, nil
}

func (m *Monitor) runCheck(ctx context.Context, runID string) (*Report, error) {
	log := m.logger.With("run_id", runID)

	start := time.Now()
	snap, err := m.fetcher.FetchSnapshot(ctx, m.opts.SheetID, m.opts.SheetName)
	m.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		return nil, err
	}
	log.Debug("Fetched ", snap.Len(), " rows from ", m.opts.SheetName)

	prior, rev, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, sherrors.ErrStateCorrupt):
		log.Warn("Ignoring unreadable state, treating this run as the first: ", err)
		prior = nil
	case err != nil:
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	checkedAt := m.now().UTC()
	result, next := detect.Compare(snap, prior, m.opts.Detect, checkedAt)
	next.RunID = runID

	if err := m.store.Save(ctx, next, rev); err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}

	switch {
	case result.FirstRun && !result.HasUpdates:
		log.Info("First run: recorded a baseline of ", result.RowCount, " rows")
	case result.HasUpdates:
		log.Info("Found ", result.NewRecordCount, " new or changed rows, latest ", result.LatestInstanceID)
	default:
		log.Info("No changes in ", result.RowCount, " rows")
	}

	return &Report{
		Result:    result,
		CheckedAt: checkedAt,
		RunID:     runID,
		Snapshot:  snap,
	}, nil
}

func (m *Monitor) setStatus(success time.Time, err error) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	if err == nil {
		m.lastSuccess = success
	}
	m.lastErr = err
}
