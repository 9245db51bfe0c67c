package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pmurley/sheetwatch/internal/models"
	"github.com/pmurley/sheetwatch/internal/monitor"
	"github.com/pmurley/sheetwatch/internal/notify"
	"github.com/pmurley/sheetwatch/internal/output"
	"github.com/pmurley/sheetwatch/internal/sheets"
)

func newCheckCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch the sheet, compare with saved state and print the outputs",
		Long: `Fetch the sheet, compare it with the state saved by the previous run, save
the new state and print has_updates, latest_instance_id, new_records_count,
total_rows and last_check. No notification is sent; pair it with the notify
command in a later workflow step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOneShot(cmd.Context(), flags, cmd.OutOrStdout(), (*monitor.Monitor).Check)
		},
	}
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check the sheet and notify when there are updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOneShot(cmd.Context(), flags, cmd.OutOrStdout(), (*monitor.Monitor).Run)
		},
	}
}

// runOneShot runs one pass and writes the outputs, even when notifying failed
func runOneShot(ctx context.Context, flags *globalFlags, stdout io.Writer, pass func(*monitor.Monitor, context.Context) (*monitor.Report, error)) error {
	cfg, log, err := flags.load(ctx)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	report, passErr := pass(a.monitor, ctx)
	a.publishMetrics(ctx)

	if report != nil {
		w := output.NewWriter(stdout, cfg.ActionsOutput)
		if err := w.Write(output.ResultPairs(report.Result, report.CheckedAt)); err != nil {
			log.Error(err)
			if passErr == nil {
				return err
			}
		}
	}
	return passErr
}

func newNotifyCommand(flags *globalFlags) *cobra.Command {
	var (
		hasUpdates bool
		instanceID string
		newRecords int
		totalRows  int
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send notifications for results produced by an earlier check",
		Long: `Send notifications using values produced by an earlier check step, e.g.

  sheetwatch notify --has-updates=${{ steps.check.outputs.has_updates }} \
    --instance-id=${{ steps.check.outputs.latest_instance_id }} \
    --new-records=${{ steps.check.outputs.new_records_count }} \
    --total-rows=${{ steps.check.outputs.total_rows }}

Nothing is sent when --has-updates is false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := flags.load(ctx)
			if err != nil {
				return err
			}
			if !hasUpdates {
				log.Info("No updates, nothing to notify")
				return nil
			}

			a, err := newApp(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			result := models.ChangeResult{
				HasUpdates:       true,
				LatestInstanceID: strings.TrimSpace(instanceID),
				NewRecordCount:   newRecords,
				RowCount:         totalRows,
			}
			event := notify.NewEvent(cfg.Sheet.ID, cfg.Sheet.Name, a.client.SheetURL(cfg.Sheet.ID), nil, result, time.Now())
			return a.monitor.Notify(ctx, event)
		},
	}

	cmd.Flags().BoolVar(&hasUpdates, "has-updates", false, "the has_updates output of the check step")
	cmd.Flags().StringVar(&instanceID, "instance-id", "", "the latest_instance_id output of the check step")
	cmd.Flags().IntVar(&newRecords, "new-records", 0, "the new_records_count output of the check step")
	cmd.Flags().IntVar(&totalRows, "total-rows", 0, "the total_rows output of the check step")

	return cmd
}

func newWatchCommand(flags *globalFlags) *cobra.Command {
	var (
		interval time.Duration
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check and notify on an interval, serving /healthz and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := flags.load(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Watch.Interval = interval
			}
			if cmd.Flags().Changed("addr") {
				cfg.Metrics.Addr = addr
			}

			a, err := newApp(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return a.monitor.Watch(ctx, cfg.Watch.Interval)
			})
			if cfg.Metrics.Addr != "" {
				g.Go(func() error {
					return a.monitor.Serve(ctx, cfg.Metrics.Addr)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "time between checks (overrides WATCH_INTERVAL)")
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address for /healthz and /metrics, empty to disable (overrides METRICS_ADDR)")

	return cmd
}

func newTestConnectionCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Fetch the sheet once and describe what was found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := flags.load(ctx)
			if err != nil {
				return err
			}

			client := sheets.NewClient(sheets.Options{BaseURL: cfg.Sheet.BaseURL, Timeout: cfg.Sheet.Timeout})
			log.Debug("Fetching ", client.ExportURL(cfg.Sheet.ID, cfg.Sheet.Name))

			snap, err := client.FetchSnapshot(ctx, cfg.Sheet.ID, cfg.Sheet.Name)
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), cfg.Sheet.Name, sheets.Describe(snap), cfg.Sheet.IDColumn, snap)
			return nil
		},
	}
}

func writeSummary(w io.Writer, sheetName string, s sheets.Summary, idColumn string, snap *models.Snapshot) {
	fmt.Fprintf(w, "Connected to sheet %q\n", sheetName)
	fmt.Fprintf(w, "Rows: %d\n", s.Rows)
	fmt.Fprintf(w, "Columns (%d): %s\n", len(s.Columns), strings.Join(s.Columns, ", "))

	if idColumn != "" {
		if snap.ColumnIndex(idColumn) < 0 {
			fmt.Fprintf(w, "Warning: id column %q not found\n", idColumn)
		} else if s.Rows > 0 {
			latest, _ := snap.Value(s.Rows-1, idColumn)
			fmt.Fprintf(w, "Latest %s: %s\n", idColumn, latest)
		}
	}

	if len(s.FirstRow) > 0 {
		fmt.Fprintln(w, "First row:")
		for _, col := range s.Columns {
			fmt.Fprintf(w, "  %s: %s\n", col, s.FirstRow[col])
		}
	}
}
