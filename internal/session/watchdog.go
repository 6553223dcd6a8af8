package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/storage/model"
)

// Watchdog periodically restarts sessions stuck in the disconnected state.
// Transient drops are handled by the engine's own reconnect; this catches
// handles whose connection died for good.
type Watchdog struct {
	manager  *Manager
	log      *zap.Logger
	interval time.Duration
}

func NewWatchdog(manager *Manager, log *zap.Logger, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watchdog{manager: manager, log: log, interval: interval}
}

func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watchdog) sweep(ctx context.Context) {
	for _, info := range w.manager.Sessions() {
		if info.State != model.SessionDisconnected {
			continue
		}
		w.log.Warn("watchdog: restarting disconnected session",
			zap.String("session_id", info.ID),
		)
		if err := w.manager.Restart(ctx, info.ID); err != nil {
			w.log.Error("watchdog: restart failed",
				zap.String("session_id", info.ID),
				zap.Error(err),
			)
		}
	}
}
