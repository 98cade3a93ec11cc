package engine

import (
	"context"
	"log/slog"
	"time"
)

// Notifier delivers timeout events to the front-end. Delivery is best
// effort: the sweeps never depend on it succeeding.
type Notifier interface {
	Warn(ctx context.Context, user, channel string, remaining time.Duration) error
	Expired(ctx context.Context, user, channel string) error
}

// LogNotifier is the fallback when no webhook is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Warn(_ context.Context, user, channel string, remaining time.Duration) error {
	n.Logger.Info("notify.warning", "user", user, "channel", channel, "remaining", remaining)
	return nil
}

func (n *LogNotifier) Expired(_ context.Context, user, channel string) error {
	n.Logger.Info("notify.expired", "user", user, "channel", channel)
	return nil
}

// RunSweeper drives the periodic sweeps until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	e.logger.Info("sweeper.started", "interval", e.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sweeper.stopped")
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep runs one cycle: warn idle sessions, expire timed-out ones, and
// periodically drop stale usage records. A failure on one user never stops
// the cycle, and a failed notification never prevents cleanup.
func (e *Engine) Sweep(ctx context.Context) {
	for _, t := range e.sessions.SweepWarnings() {
		if err := e.notifier.Warn(ctx, t.User, t.Channel, t.Remaining); err != nil {
			e.logger.Warn("sweeper.warn_failed", "user", t.User, "error", err)
		}
	}
	for _, t := range e.sessions.SweepExpirations() {
		e.sessions.Cleanup(t.User)
		e.logger.Info("sweeper.session_expired", "user", t.User)
		if t.Channel == "" {
			continue
		}
		if err := e.notifier.Expired(ctx, t.User, t.Channel); err != nil {
			e.logger.Warn("sweeper.expire_notify_failed", "user", t.User, "error", err)
		}
	}
	if now := e.now(); now.Sub(e.lastUsageSweep) >= time.Hour {
		e.lastUsageSweep = now
		e.limiter.Sweep()
	}
}
