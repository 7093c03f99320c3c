package jobs

import (
	"context"
	"fmt"
	"time"
)

// Sweep evicts terminal jobs whose end time is older than maxAge.
func (m *Manager) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := m.clock.Now().Add(-maxAge)
	n, err := m.store.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	if n > 0 {
		m.log.WithField("evicted", n).Info("expired scan jobs evicted")
	}
	return n, nil
}

// StartRetention sweeps every interval until the manager is closed.
// A non-positive maxAge or interval disables retention.
func (m *Manager) StartRetention(maxAge, interval time.Duration) {
	if maxAge <= 0 || interval <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := m.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				ctx, cancel := context.WithTimeout(context.Background(), phaseTimeout)
				if _, err := m.Sweep(ctx, maxAge); err != nil {
					m.log.WithError(err).Error("retention sweep failed")
				}
				cancel()
			case <-m.stopCh:
				return
			}
		}
	}()
}
