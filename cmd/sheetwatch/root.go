package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/pmurley/sheetwatch/internal/config"
	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/pkg/logger"
)

// globalFlags override the file and environment configuration
type globalFlags struct {
	configPath   string
	logLevel     string
	sheetID      string
	sheetName    string
	stateBackend string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "sheetwatch",
		Short: "Detect new rows in a public Google Sheet and notify",
		Long: `sheetwatch downloads a publicly shared Google Sheet tab as CSV, compares it
with the state saved by the previous run and reports whether rows were added
or changed. Results are printed as key=value lines and appended to
$GITHUB_OUTPUT when running under GitHub Actions.

Configuration comes from an optional YAML file (--config or .sheetwatch.yaml),
environment variables (a .env file is loaded if present) and flags, in
increasing order of precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file (default .sheetwatch.yaml if present)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.sheetID, "sheet-id", "", "spreadsheet id (overrides GOOGLE_SHEETS_ID)")
	pf.StringVar(&flags.sheetName, "sheet-name", "", "tab name (overrides SHEET_NAME)")
	pf.StringVar(&flags.stateBackend, "state-backend", "", "state backend: file, s3, sqlite (overrides STATE_BACKEND)")

	rootCmd.AddCommand(
		newCheckCommand(flags),
		newRunCommand(flags),
		newNotifyCommand(flags),
		newWatchCommand(flags),
		newTestConnectionCommand(flags),
	)

	return rootCmd
}

// load reads and validates the configuration, applying flag overrides.
func (f *globalFlags) load(ctx context.Context) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(ctx, f.configPath, nil)
	if err != nil {
		return nil, nil, err
	}

	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.sheetID != "" {
		cfg.Sheet.ID = f.sheetID
	}
	if f.sheetName != "" {
		cfg.Sheet.Name = f.sheetName
	}
	if f.stateBackend != "" {
		cfg.State.Backend = f.stateBackend
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.LogLevel), nil
}

// mapErrorToExitCode maps internal errors to appropriate exit codes
func mapErrorToExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, sherrors.ErrInvalidConfig):
		return 2 // Configuration errors
	case errors.Is(err, sherrors.ErrNotPublic),
		errors.Is(err, sherrors.ErrSheetNotFound):
		return 3 // Access errors
	case errors.Is(err, sherrors.ErrMalformedCSV),
		errors.Is(err, sherrors.ErrResponseTooLarge):
		return 4 // Parse errors
	case errors.Is(err, sherrors.ErrStateCorrupt),
		errors.Is(err, sherrors.ErrStateWrite),
		errors.Is(err, sherrors.ErrStateConflict):
		return 5 // State errors
	case errors.Is(err, sherrors.ErrNetworkFailure),
		errors.Is(err, sherrors.ErrUnexpectedStatus):
		return 6 // Network errors
	case errors.Is(err, sherrors.ErrNotifyFailed):
		return 7 // Notification errors
	default:
		return 1 // General error
	}
}
