package monitor

import (
	"context"
	"fmt"
	"time"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
)

// Watch runs a pass immediately and then every interval until ctx is
// cancelled. Failed passes are logged and the loop carries on.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s: %w", interval, sherrors.ErrInvalidConfig)
	}

	m.logger.Info("Starting sheet monitor, checking every ", interval)

	// Initial check on startup
	m.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runOnce(ctx)
		case <-ctx.Done():
			m.logger.Info("Stopping sheet monitor")
			return nil
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := m.Run(ctx); err != nil {
		m.logger.Error("Sheet check failed: ", err)
	}
}
