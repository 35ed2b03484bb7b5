package application

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mgrist/acm-roster/internal/domain/model"
	"github.com/mgrist/acm-roster/internal/metrics"
)

// reload fetches the roster with the current session and replaces the cache
// on success. It never re-authenticates. Every attempt is journaled.
func (c *Chapter) reload(ctx context.Context, trigger model.RefreshTrigger) ([]model.Member, error) {
	c.mu.RLock()
	state, session := c.state, c.session
	c.mu.RUnlock()

	if state != model.SessionAuthenticated {
		return nil, model.ErrNotAuthenticated
	}

	start := c.now()
	clock := time.Now()
	members, err := c.client.ExportRoster(ctx, session)
	elapsed := time.Since(clock)
	metrics.RefreshDuration.Observe(elapsed.Seconds())

	if err == nil && len(members) == 0 {
		err = fmt.Errorf("%w: roster export is empty", model.ErrParse)
	}

	rec := model.RefreshRecord{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: start,
		Duration:  elapsed,
	}

	if err != nil {
		metrics.RefreshesTotal.WithLabelValues(string(trigger), metrics.ResultError).Inc()
		rec.Error = err.Error()
		c.record(ctx, rec)
		c.logger.Warn("roster reload failed", "trigger", trigger, "error", err)
		return nil, err
	}

	c.cache.Replace(members)
	metrics.RefreshesTotal.WithLabelValues(string(trigger), metrics.ResultSuccess).Inc()
	metrics.RosterMembers.Set(float64(len(members)))

	rec.Members = len(members)
	rec.Subscribers = countSubscribers(members)
	current, expired := partitionByExpiry(members, model.Today(start))
	rec.Current, rec.Expired = len(current), len(expired)
	c.record(ctx, rec)

	c.logger.Info("roster reloaded",
		"trigger", trigger,
		"members", rec.Members,
		"duration", elapsed.Round(time.Millisecond),
	)
	return slices.Clone(members), nil
}

// record writes rec to the journal if one is configured. Journal failures are
// logged only.
func (c *Chapter) record(ctx context.Context, rec model.RefreshRecord) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("recording refresh failed", "refresh_id", rec.ID, "error", err)
	}
}

// RefreshHistory returns up to limit journaled reload attempts, newest first.
// Without a journal it returns an empty slice.
func (c *Chapter) RefreshHistory(ctx context.Context, limit int) ([]model.RefreshRecord, error) {
	if c.journal == nil {
		return []model.RefreshRecord{}, nil
	}
	records, err := c.journal.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing refresh history: %w", err)
	}
	return records, nil
}

func countSubscribers(members []model.Member) int {
	var n int
	for _, m := range members {
		if m.IsSubscriber() {
			n++
		}
	}
	return n
}
