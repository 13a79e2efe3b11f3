package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdalton/linkhoard/internal/store"
)

// Reclaimer recovers items orphaned by crashed workers. A worker dying
// mid-batch leaves its items in processing forever; there is no heartbeat or
// lease renewal, just a fixed staleness threshold past which any surviving
// worker returns the items to pending.
type Reclaimer struct {
	items      store.ItemStore
	staleAfter time.Duration
	metrics    Metrics
	logger     *slog.Logger
}

// NewReclaimer creates a Reclaimer with the given staleness threshold.
func NewReclaimer(items store.ItemStore, staleAfter time.Duration, metrics Metrics, logger *slog.Logger) *Reclaimer {
	if items == nil {
		panic("items cannot be nil")
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reclaimer{
		items:      items,
		staleAfter: staleAfter,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "reclaimer")),
	}
}

// ResetStaleItems returns every item stuck in processing past the staleness
// threshold to pending, in one atomic batch update, and reports the count.
// Stuck items are an expected operational condition, not an error: they are
// surfaced as a counter metric and a log line only.
func (r *Reclaimer) ResetStaleItems(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.staleAfter)

	count, err := r.items.ResetStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale items: %w", err)
	}

	if count > 0 {
		r.logger.Info("reclaimed stale processing items",
			slog.Int64("count", count),
			slog.Duration("stale_after", r.staleAfter))
		r.metrics.RecordStaleReset(int(count))
	}

	return count, nil
}
