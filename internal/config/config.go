package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
)

// DefaultConfigPaths are tried in order when no --config flag is given
var DefaultConfigPaths = []string{".sheetwatch.yaml", ".sheetwatch.yml"}

type Config struct {
	Sheet     SheetConfig     `yaml:"sheet"`
	State     StateConfig     `yaml:"state"`
	GitHub    GitHubConfig    `yaml:"github"`
	Discord   DiscordConfig   `yaml:"discord"`
	NATS      NATSConfig      `yaml:"nats"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Watch     WatchConfig     `yaml:"watch"`
	LogLevel  string          `yaml:"log_level" env:"LOG_LEVEL,default=info"`

	// ActionsOutput is the $GITHUB_OUTPUT file set by GitHub Actions
	ActionsOutput string `yaml:"-" env:"GITHUB_OUTPUT"`
}

type SheetConfig struct {
	ID               string        `yaml:"id" env:"GOOGLE_SHEETS_ID"`
	Name             string        `yaml:"name" env:"SHEET_NAME,default=Sheet1"`
	IDColumn         string        `yaml:"id_column" env:"INSTANCE_ID_COLUMN"`
	NotifyOnFirstRun bool          `yaml:"notify_on_first_run" env:"NOTIFY_ON_FIRST_RUN"`
	BaseURL          string        `yaml:"base_url" env:"SHEETS_BASE_URL,default=https://docs.google.com"`
	Timeout          time.Duration `yaml:"timeout" env:"FETCH_TIMEOUT,default=30s"`
}

type StateConfig struct {
	Backend       string `yaml:"backend" env:"STATE_BACKEND,default=file"`
	File          string `yaml:"file" env:"STATE_FILE,default=sheets_state.json"`
	SQLitePath    string `yaml:"sqlite_path" env:"STATE_SQLITE_PATH,default=sheetwatch.db"`
	S3Bucket      string `yaml:"s3_bucket" env:"STATE_S3_BUCKET"`
	S3Key         string `yaml:"s3_key" env:"STATE_S3_KEY,default=sheetwatch/state.json"`
	S3Endpoint    string `yaml:"s3_endpoint" env:"S3_ENDPOINT"`
	S3Region      string `yaml:"s3_region" env:"S3_REGION,default=us-east-1"`
	S3AccessKey   string `yaml:"-" env:"S3_ACCESS_KEY"`
	S3SecretKey   string `yaml:"-" env:"S3_SECRET_KEY"`
	S3VirtualHost bool   `yaml:"s3_virtual_host" env:"S3_VIRTUAL_HOST"`
}

type GitHubConfig struct {
	Token       string `yaml:"-" env:"GITHUB_TOKEN"`
	Repository  string `yaml:"repository" env:"GITHUB_REPOSITORY"`
	GraphQLURL  string `yaml:"graphql_url" env:"GITHUB_GRAPHQL_URL,default=https://api.github.com/graphql"`
	ProjectID   string `yaml:"project_id" env:"GITHUB_PROJECT_ID"`
	TitlePrefix string `yaml:"title_prefix" env:"ISSUE_TITLE_PREFIX,default=Sheet update"`
}

type DiscordConfig struct {
	WebhookID    string `yaml:"webhook_id" env:"DISCORD_WEBHOOK_ID"`
	WebhookToken string `yaml:"-" env:"DISCORD_WEBHOOK_TOKEN"`
}

type NATSConfig struct {
	URL     string `yaml:"url" env:"NATS_URL"`
	Subject string `yaml:"subject" env:"NATS_SUBJECT,default=sheetwatch.updates"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" env:"PUSHGATEWAY_URL"`
	TextfilePath   string `yaml:"textfile" env:"METRICS_TEXTFILE"`
	Addr           string `yaml:"addr" env:"METRICS_ADDR,default=:9090"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type WatchConfig struct {
	Interval      time.Duration `yaml:"interval" env:"WATCH_INTERVAL,default=5m"`
	IssueCacheTTL time.Duration `yaml:"issue_cache_ttl" env:"ISSUE_CACHE_TTL,default=1h"`
}

// Load builds a Config from an optional YAML file and the environment.
// Environment variables win over the file; defaults fill what is left.
// A nil lookuper reads the process environment.
func Load(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		for _, p := range DefaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				if err := loadFile(p, cfg); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           cfg,
		Lookuper:         lookuper,
		DefaultOverwrite: true,
	}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %v: %w", err, sherrors.ErrInvalidConfig)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %v: %w", path, err, sherrors.ErrInvalidConfig)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %v: %w", path, err, sherrors.ErrInvalidConfig)
	}
	return nil
}

// Validate checks what every command needs before touching the network
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sheet.ID) == "" {
		return fmt.Errorf("GOOGLE_SHEETS_ID is not set: %w", sherrors.ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Sheet.Name) == "" {
		return fmt.Errorf("SHEET_NAME is empty: %w", sherrors.ErrInvalidConfig)
	}
	if c.Sheet.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s: %w", c.Sheet.Timeout, sherrors.ErrInvalidConfig)
	}
	switch strings.ToLower(c.State.Backend) {
	case "file", "s3", "sqlite":
	default:
		return fmt.Errorf("unknown state backend %q: %w", c.State.Backend, sherrors.ErrInvalidConfig)
	}
	if c.GitHub.Token != "" {
		if _, _, ok := c.GitHub.OwnerRepo(); !ok {
			return fmt.Errorf("GITHUB_REPOSITORY must be owner/name, got %q: %w", c.GitHub.Repository, sherrors.ErrInvalidConfig)
		}
	}
	if (c.Discord.WebhookID == "") != (c.Discord.WebhookToken == "") {
		return fmt.Errorf("DISCORD_WEBHOOK_ID and DISCORD_WEBHOOK_TOKEN must be set together: %w", sherrors.ErrInvalidConfig)
	}
	return nil
}

// StateKey identifies this sheet tab in shared state backends
func (c *Config) StateKey() string {
	return c.Sheet.ID + "/" + c.Sheet.Name
}

// OwnerRepo splits Repository into owner and name
func (g GitHubConfig) OwnerRepo() (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(strings.TrimSpace(g.Repository), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}
