package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), "", envconfig.MapLookuper(map[string]string{
		"GOOGLE_SHEETS_ID": "abc",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sheet.Name != "Sheet1" {
		t.Errorf("Sheet.Name = %q, want Sheet1", cfg.Sheet.Name)
	}
	if cfg.Sheet.Timeout != 30*time.Second {
		t.Errorf("Sheet.Timeout = %v", cfg.Sheet.Timeout)
	}
	if cfg.State.Backend != "file" || cfg.State.File != "sheets_state.json" {
		t.Errorf("State = %+v", cfg.State)
	}
	if cfg.GitHub.GraphQLURL != "https://api.github.com/graphql" {
		t.Errorf("GraphQLURL = %q", cfg.GitHub.GraphQLURL)
	}
	if cfg.Watch.Interval != 5*time.Minute {
		t.Errorf("Watch.Interval = %v", cfg.Watch.Interval)
	}
	if cfg.Sheet.NotifyOnFirstRun {
		t.Error("NotifyOnFirstRun should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheetwatch.yaml")
	content := `
sheet:
  id: from-file
  name: Responses
  id_column: Ticket
  notify_on_first_run: true
state:
  backend: sqlite
watch:
  interval: 90s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), path, envconfig.MapLookuper(map[string]string{
		"GOOGLE_SHEETS_ID": "from-env",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sheet.ID != "from-env" {
		t.Errorf("Sheet.ID = %q, environment should win", cfg.Sheet.ID)
	}
	if cfg.Sheet.Name != "Responses" {
		t.Errorf("Sheet.Name = %q, file should beat default", cfg.Sheet.Name)
	}
	if cfg.Sheet.IDColumn != "Ticket" || !cfg.Sheet.NotifyOnFirstRun {
		t.Errorf("Sheet = %+v", cfg.Sheet)
	}
	if cfg.State.Backend != "sqlite" {
		t.Errorf("State.Backend = %q", cfg.State.Backend)
	}
	if cfg.Watch.Interval != 90*time.Second {
		t.Errorf("Watch.Interval = %v", cfg.Watch.Interval)
	}
	if cfg.StateKey() != "from-env/Responses" {
		t.Errorf("StateKey() = %q", cfg.StateKey())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), envconfig.MapLookuper(nil))
	if !errors.Is(err, sherrors.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadBadDuration(t *testing.T) {
	_, err := Load(context.Background(), "", envconfig.MapLookuper(map[string]string{
		"FETCH_TIMEOUT": "soon",
	}))
	if !errors.Is(err, sherrors.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Sheet: SheetConfig{ID: "abc", Name: "Sheet1", Timeout: time.Second},
			State: StateConfig{Backend: "file"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing id", mutate: func(c *Config) { c.Sheet.ID = "" }, wantErr: true},
		{name: "blank tab", mutate: func(c *Config) { c.Sheet.Name = "   " }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Sheet.Timeout = 0 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.State.Backend = "etcd" }, wantErr: true},
		{
			name: "token without repository",
			mutate: func(c *Config) {
				c.GitHub.Token = "t"
				c.GitHub.Repository = "just-a-name"
			},
			wantErr: true,
		},
		{
			name: "token with repository",
			mutate: func(c *Config) {
				c.GitHub.Token = "t"
				c.GitHub.Repository = "octo/sheets"
			},
		},
		{name: "half a webhook", mutate: func(c *Config) { c.Discord.WebhookID = "123" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, sherrors.ErrInvalidConfig) {
				t.Errorf("error %v should wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestOwnerRepo(t *testing.T) {
	owner, name, ok := GitHubConfig{Repository: "octo/sheets"}.OwnerRepo()
	if !ok || owner != "octo" || name != "sheets" {
		t.Errorf("OwnerRepo() = %q, %q, %v", owner, name, ok)
	}
	for _, bad := range []string{"", "octo", "/sheets", "octo/", "a/b/c"} {
		if _, _, ok := (GitHubConfig{Repository: bad}).OwnerRepo(); ok {
			t.Errorf("OwnerRepo(%q) should fail", bad)
		}
	}
}
