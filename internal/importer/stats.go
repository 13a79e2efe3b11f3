package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/store"
)

// sessionStatuses enumerates every status for gauge reporting, so a status
// that drops to zero sessions is reported as zero rather than going stale.
var sessionStatuses = []domain.SessionStatus{
	domain.SessionStatusStaging,
	domain.SessionStatusPending,
	domain.SessionStatusRunning,
	domain.SessionStatusPaused,
	domain.SessionStatusCompleted,
}

// StatsCollector refreshes the backlog gauges: pending items, non-stale
// in-flight items, and sessions by status. It is scheduled out-of-band from
// the polling loop (the worker runs it on a cron), so gauge freshness never
// competes with scheduling work.
type StatsCollector struct {
	sessions   store.SessionStore
	items      store.ItemStore
	staleAfter time.Duration
	metrics    Metrics
	logger     *slog.Logger
}

// NewStatsCollector creates a StatsCollector.
func NewStatsCollector(
	sessions store.SessionStore,
	items store.ItemStore,
	staleAfter time.Duration,
	metrics Metrics,
	logger *slog.Logger,
) *StatsCollector {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if items == nil {
		panic("items cannot be nil")
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StatsCollector{
		sessions:   sessions,
		items:      items,
		staleAfter: staleAfter,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "stats")),
	}
}

// Refresh reads current backlog counts and pushes them into the gauges.
func (c *StatsCollector) Refresh(ctx context.Context) error {
	pending, err := c.items.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending items: %w", err)
	}
	c.metrics.SetPending(pending)

	inFlight, err := c.items.CountInFlight(ctx, time.Now().UTC().Add(-c.staleAfter))
	if err != nil {
		return fmt.Errorf("failed to count in-flight items: %w", err)
	}
	c.metrics.SetInFlight(inFlight)

	counts, err := c.sessions.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count sessions: %w", err)
	}
	for _, status := range sessionStatuses {
		c.metrics.SetSessions(string(status), counts[status])
	}

	return nil
}
