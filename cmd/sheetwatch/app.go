package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pmurley/sheetwatch/internal/cache"
	"github.com/pmurley/sheetwatch/internal/config"
	"github.com/pmurley/sheetwatch/internal/detect"
	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/metrics"
	"github.com/pmurley/sheetwatch/internal/monitor"
	"github.com/pmurley/sheetwatch/internal/notify"
	"github.com/pmurley/sheetwatch/internal/sheets"
	"github.com/pmurley/sheetwatch/internal/storage"
	"github.com/pmurley/sheetwatch/internal/telemetry"
	"github.com/pmurley/sheetwatch/pkg/logger"
)

const serviceName = "sheetwatch"

// app holds everything a command needs for one invocation
type app struct {
	cfg       *config.Config
	logger    *logger.Logger
	client    *sheets.Client
	store     storage.Store
	recorder  *metrics.Recorder
	notifiers *notify.Multi
	monitor   *monitor.Monitor
	shutdown  func(context.Context) error
}

// newApp wires the pipeline. withState opens the state backend; the notify
// command runs without one.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger, withState bool) (*app, error) {
	shutdown, err := telemetry.Init(ctx, serviceName, version, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   log,
		recorder: metrics.NewRecorder(),
		shutdown: shutdown,
		client: sheets.NewClient(sheets.Options{
			BaseURL: cfg.Sheet.BaseURL,
			Timeout: cfg.Sheet.Timeout,
		}),
	}

	if withState {
		store, err := storage.Open(ctx, storage.Options{
			Backend:    cfg.State.Backend,
			FilePath:   cfg.State.File,
			SQLitePath: cfg.State.SQLitePath,
			Key:        cfg.StateKey(),
			S3: storage.S3Options{
				Endpoint:       cfg.State.S3Endpoint,
				Region:         cfg.State.S3Region,
				AccessKey:      cfg.State.S3AccessKey,
				SecretKey:      cfg.State.S3SecretKey,
				Bucket:         cfg.State.S3Bucket,
				Key:            cfg.State.S3Key,
				ForcePathStyle: !cfg.State.S3VirtualHost,
			},
		})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.store = store
	}

	a.notifiers, err = buildNotifiers(cfg, log, a.recorder)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.monitor = monitor.New(monitor.Options{
		SheetID:   cfg.Sheet.ID,
		SheetName: cfg.Sheet.Name,
		SheetURL:  a.client.SheetURL(cfg.Sheet.ID),
		Detect: detect.Options{
			IDColumn:         cfg.Sheet.IDColumn,
			NotifyOnFirstRun: cfg.Sheet.NotifyOnFirstRun,
		},
	}, a.client, a.store, a.notifiers, a.recorder, log)

	return a, nil
}

// buildNotifiers enables every sink that has credentials configured
func buildNotifiers(cfg *config.Config, log *logger.Logger, rec *metrics.Recorder) (*notify.Multi, error) {
	var notifiers []notify.Notifier

	if cfg.GitHub.Token != "" {
		owner, repo, _ := cfg.GitHub.OwnerRepo()
		notifiers = append(notifiers, notify.NewGitHub(notify.GitHubOptions{
			Token:       cfg.GitHub.Token,
			Owner:       owner,
			Repo:        repo,
			Endpoint:    cfg.GitHub.GraphQLURL,
			ProjectID:   cfg.GitHub.ProjectID,
			TitlePrefix: cfg.GitHub.TitlePrefix,
			Cache:       cache.New(cfg.Watch.IssueCacheTTL),
			Logger:      log,
		}))
	}

	if cfg.Discord.WebhookID != "" {
		d, err := notify.NewDiscord(notify.DiscordOptions{
			WebhookID:    cfg.Discord.WebhookID,
			WebhookToken: cfg.Discord.WebhookToken,
			TitlePrefix:  cfg.GitHub.TitlePrefix,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, d)
	}

	if cfg.NATS.URL != "" {
		n, err := notify.NewNATS(cfg.NATS.URL, cfg.NATS.Subject, nats.Timeout(10*time.Second))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", sherrors.ErrNotifyFailed, err)
		}
		notifiers = append(notifiers, n)
	}

	if len(notifiers) == 0 {
		log.Debug("No notifiers configured")
	}
	return notify.NewMulti(rec.Notified, notifiers...), nil
}

// publishMetrics hands one-shot metrics to whatever collector is configured
func (a *app) publishMetrics(ctx context.Context) {
	if url := a.cfg.Metrics.PushgatewayURL; url != "" {
		if err := a.recorder.Push(ctx, url, serviceName); err != nil {
			a.logger.Warn(err)
		}
	}
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := a.recorder.WriteTextfile(path); err != nil {
			a.logger.Warn(err)
		}
	}
}

func (a *app) close(ctx context.Context) {
	if a.notifiers != nil {
		if err := a.notifiers.Close(); err != nil {
			a.logger.Warn("Error closing notifiers: ", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Error closing state store: ", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Error flushing traces: ", err)
	}
}
