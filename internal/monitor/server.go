package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type statusResponse struct {
	Status      string     `json:"status"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Router serves liveness, readiness and metrics for watch mode.
// /readyz answers 503 until a pass has succeeded and while the latest
// pass is failing.
func (m *Monitor) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		lastSuccess, lastErr := m.Status()

		resp := statusResponse{Status: "ok"}
		code := http.StatusOK
		if !lastSuccess.IsZero() {
			resp.LastSuccess = &lastSuccess
		}
		switch {
		case lastErr != nil:
			resp.Status = "failing"
			resp.LastError = lastErr.Error()
			code = http.StatusServiceUnavailable
		case lastSuccess.IsZero():
			resp.Status = "starting"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Method(http.MethodGet, "/metrics", m.metrics.Handler())

	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		m.logger.Info("Serving health and metrics on ", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
