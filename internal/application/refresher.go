package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	done chan error
}

// Refresher reloads the roster on a fixed interval and serves manual refresh
// requests from its run loop.
type Refresher struct {
	chapter   *Chapter
	interval  time.Duration
	logger    *slog.Logger
	refreshCh chan refreshRequest
}

// NewRefresher creates a Refresher for chapter. An interval of zero or less
// disables scheduled refreshes; manual ones still run.
func NewRefresher(chapter *Chapter, interval time.Duration) *Refresher {
	return &Refresher{
		chapter:   chapter,
		interval:  interval,
		logger:    chapter.logger,
		refreshCh: make(chan refreshRequest),
	}
}

// Start runs the refresh loop until ctx is canceled. The roster is assumed to
// be loaded already, so there is no immediate refresh.
func (r *Refresher) Start(ctx context.Context) {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped")
			return
		case <-tick:
			if _, err := r.chapter.refreshAs(ctx, model.TriggerScheduled); err != nil {
				r.logger.Error("scheduled refresh failed", "error", err)
			}
		case req := <-r.refreshCh:
			_, err := r.chapter.refreshAs(ctx, model.TriggerManual)
			req.done <- err
		}
	}
}

// RefreshNow asks the run loop for an immediate reload and waits for it. It
// blocks until the refresh completes or ctx is canceled.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case r.refreshCh <- refreshRequest{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
