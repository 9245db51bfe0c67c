package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.CheckSucceeded(4, true, time.Unix(1700000000, 0))
	r.CheckSucceeded(4, false, time.Unix(1700000060, 0))
	r.CheckFailed()
	r.Notified("github", nil)
	r.Notified("discord", errors.New("boom"))

	if got := testutil.ToFloat64(r.checks.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok checks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.checks.WithLabelValues("error")); got != 1 {
		t.Errorf("error checks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.updates); got != 1 {
		t.Errorf("updates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.rows); got != 4 {
		t.Errorf("rows = %v, want 4", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess); got != 1700000060 {
		t.Errorf("last success = %v", got)
	}
	if got := testutil.ToFloat64(r.notifications.WithLabelValues("discord", "error")); got != 1 {
		t.Errorf("discord errors = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.CheckSucceeded(2, false, time.Now())

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "sheetwatch_sheet_rows 2") {
		t.Errorf("metrics body missing gauge:\n%s", body)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.CheckSucceeded(3, true, time.Now())

	path := filepath.Join(t.TempDir(), "sheetwatch.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "sheetwatch_updates_total 1") {
		t.Errorf("textfile missing counter:\n%s", data)
	}
}

func TestPush(t *testing.T) {
	var gotPath, gotMethod string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotMethod = req.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	r := NewRecorder()
	r.CheckSucceeded(1, false, time.Now())
	if err := r.Push(context.Background(), gateway.URL, "sheetwatch"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/metrics/job/sheetwatch" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}
