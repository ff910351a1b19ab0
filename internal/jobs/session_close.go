package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yRomulo/AstroCall/internal/config"
	"github.com/yRomulo/AstroCall/internal/repository"
)

// StartSessionCloseJob periodically ends sessions left active by clients
// that disconnected without the ended write. It only ever moves sessions
// forward to ended.
func StartSessionCloseJob(ctx context.Context, cfg config.Config, store *repository.Store, log *zap.Logger) {
	if !cfg.SessionCloseJobEnabled {
		return
	}
	interval := cfg.SessionCloseJobInterval
	if interval <= 0 {
		interval = time.Minute
	}
	maxAge := cfg.SessionMaxActiveAge
	if maxAge <= 0 {
		maxAge = 2 * time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				closed, err := store.CloseStaleSessions(tickCtx, now.Add(-maxAge), now)
				cancel()
				if err != nil {
					log.Warn("session close job error", zap.Error(err))
					continue
				}
				if closed > 0 {
					log.Info("session close job ended stale sessions", zap.Int64("count", closed))
				}
			}
		}
	}()
}
