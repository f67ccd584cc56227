package mvcc

import (
	"context"
	"log/slog"
	"time"
)

// RunGCLoop runs RunGC on a fixed cadence until ctx is cancelled,
// mirroring the engine's flushLoop/compactionLoop ticker-driven
// background worker shape (C10).
func (m *Manager) RunGCLoop(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := m.RunGC(); n > 0 {
				logger.Debug("mvcc gc pass", "versions_cleaned", n)
			}
		}
	}
}
