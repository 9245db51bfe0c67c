package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
)

func TestMapErrorToExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"nil", nil, 0},
		{"config", fmt.Errorf("GOOGLE_SHEETS_ID is not set: %w", sherrors.ErrInvalidConfig), 2},
		{"not public", fmt.Errorf("fetch: %w", sherrors.ErrNotPublic), 3},
		{"not found", sherrors.ErrSheetNotFound, 3},
		{"parse", fmt.Errorf("row 4: %w", sherrors.ErrMalformedCSV), 4},
		{"too large", fmt.Errorf("sheet export exceeds 10 bytes: %w", sherrors.ErrResponseTooLarge), 4},
		{"corrupt state", sherrors.ErrStateCorrupt, 5},
		{"write state", sherrors.ErrStateWrite, 5},
		{"conflict", fmt.Errorf("save: %w", sherrors.ErrStateConflict), 5},
		{"network", sherrors.ErrNetworkFailure, 6},
		{"status", sherrors.ErrUnexpectedStatus, 6},
		{"notify", fmt.Errorf("%w: %w", sherrors.ErrNotifyFailed, errors.New("github: boom")), 7},
		{"other", errors.New("something else"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErrorToExitCode(tt.err)
			if got != tt.wantCode {
				t.Errorf("mapErrorToExitCode(%v) = %d, want %d", tt.err, got, tt.wantCode)
			}
		})
	}
}

// isolateEnv clears variables that would enable real sinks on a developer
// machine or CI runner.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_SHEETS_ID", "SHEET_NAME", "INSTANCE_ID_COLUMN", "NOTIFY_ON_FIRST_RUN",
		"STATE_BACKEND", "GITHUB_TOKEN", "GITHUB_REPOSITORY", "DISCORD_WEBHOOK_ID",
		"DISCORD_WEBHOOK_TOKEN", "NATS_URL", "PUSHGATEWAY_URL", "METRICS_TEXTFILE",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "GITHUB_OUTPUT", "GITHUB_PROJECT_ID",
	} {
		// Setenv registers the restore; unset so defaults apply
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	isolateEnv(t)

	body := "Instance ID,Owner\ni-001,ana\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, body)
	}))
	defer server.Close()

	dir := t.TempDir()
	actionsOutput := filepath.Join(dir, "github_output")
	t.Setenv("GOOGLE_SHEETS_ID", "abc")
	t.Setenv("SHEETS_BASE_URL", server.URL)
	t.Setenv("STATE_FILE", filepath.Join(dir, "sheets_state.json"))
	t.Setenv("INSTANCE_ID_COLUMN", "Instance ID")
	t.Setenv("GITHUB_OUTPUT", actionsOutput)

	out, err := execute(t, "check")
	if err != nil {
		t.Fatalf("first check error = %v", err)
	}
	if !strings.Contains(out, "has_updates=false\n") || !strings.Contains(out, "total_rows=1\n") {
		t.Errorf("first check output:\n%s", out)
	}

	body += "i-002,bo\n"
	out, err = execute(t, "check")
	if err != nil {
		t.Fatalf("second check error = %v", err)
	}
	for _, want := range []string{"has_updates=true\n", "latest_instance_id=i-002\n", "new_records_count=1\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(actionsOutput)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "has_updates=") != 2 {
		t.Errorf("GITHUB_OUTPUT should receive both runs:\n%s", data)
	}
}

func TestCheckCommand_MissingSheetID(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "check")
	if mapErrorToExitCode(err) != 2 {
		t.Errorf("error = %v, want a configuration error", err)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GOOGLE_SHEETS_ID", "from-env")
	t.Setenv("STATE_BACKEND", "file")

	flags := &globalFlags{sheetID: "from-flag", sheetName: "Tab 2", stateBackend: "sqlite", logLevel: "debug"}
	cfg, _, err := flags.load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sheet.ID != "from-flag" || cfg.Sheet.Name != "Tab 2" || cfg.State.Backend != "sqlite" || cfg.LogLevel != "debug" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestNotifyCommand_NoUpdates(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GOOGLE_SHEETS_ID", "abc")

	if _, err := execute(t, "notify", "--has-updates=false"); err != nil {
		t.Errorf("notify without updates error = %v", err)
	}
}

func TestNotifyCommand_IssueCarriesCheckOutputs(t *testing.T) {
	isolateEnv(t)

	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string `json:"query"`
			Variables struct {
				Input map[string]interface{} `json:"input"`
			} `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		var data string
		switch {
		case strings.Contains(req.Query, "search("):
			data = `{"search":{"nodes":[]}}`
		case strings.Contains(req.Query, "repository("):
			data = `{"repository":{"id":"R_1"}}`
		case strings.Contains(req.Query, "createIssue("):
			body, _ = req.Variables.Input["body"].(string)
			data = `{"createIssue":{"issue":{"id":"I_1","number":1,"url":"https://github.com/o/r/issues/1"}}}`
		default:
			http.Error(w, "unexpected query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":`+data+`}`)
	}))
	defer server.Close()

	t.Setenv("GOOGLE_SHEETS_ID", "abc")
	t.Setenv("GITHUB_TOKEN", "t0ken")
	t.Setenv("GITHUB_REPOSITORY", "o/r")
	t.Setenv("GITHUB_GRAPHQL_URL", server.URL)

	_, err := execute(t, "notify", "--has-updates=true", "--instance-id=i-042", "--new-records=3", "--total-rows=42")
	if err != nil {
		t.Fatalf("notify error = %v", err)
	}
	for _, want := range []string{"- Latest instance: `i-042`", "- New or changed rows: 3", "- Total rows: 42"} {
		if !strings.Contains(body, want) {
			t.Errorf("issue body missing %q:\n%s", want, body)
		}
	}
}

func TestTestConnectionCommand(t *testing.T) {
	isolateEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "Instance ID,Owner\ni-001,ana\ni-002,bo\n")
	}))
	defer server.Close()
	t.Setenv("GOOGLE_SHEETS_ID", "abc")
	t.Setenv("SHEETS_BASE_URL", server.URL)
	t.Setenv("INSTANCE_ID_COLUMN", "instance id")

	out, err := execute(t, "test-connection")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Rows: 2", "Columns (2): Instance ID, Owner", "Latest instance id: i-002", "  Owner: ana"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTestConnectionCommand_NotPublic(t *testing.T) {
	isolateEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()
	t.Setenv("GOOGLE_SHEETS_ID", "abc")
	t.Setenv("SHEETS_BASE_URL", server.URL)

	_, err := execute(t, "test-connection")
	if mapErrorToExitCode(err) != 3 {
		t.Errorf("error = %v, want an access error", err)
	}
}
