package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdalton/linkhoard/internal/store"
)

// AdmissionController bounds how much new work may be started system-wide.
// It counts both items currently processing and items that finished within a
// sliding window: the downstream creation call returns quickly but triggers
// expensive asynchronous work (crawling, inference) elsewhere, so limiting
// only the call's own concurrency would under-throttle the real bottleneck.
// The window approximates limiting the rate at which that work is triggered.
type AdmissionController struct {
	items       store.ItemStore
	maxInFlight int
	window      time.Duration
	staleAfter  time.Duration
	logger      *slog.Logger
}

// NewAdmissionController creates an AdmissionController. maxInFlight is the
// system-wide in-flight bound, window the sliding admission window, and
// staleAfter the age past which a processing item is presumed orphaned and
// no longer counts against capacity.
func NewAdmissionController(
	items store.ItemStore,
	maxInFlight int,
	window time.Duration,
	staleAfter time.Duration,
	logger *slog.Logger,
) *AdmissionController {
	if items == nil {
		panic("items cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AdmissionController{
		items:       items,
		maxInFlight: maxInFlight,
		window:      window,
		staleAfter:  staleAfter,
		logger:      logger.With(slog.String("component", "admission")),
	}
}

// AvailableCapacity computes how many new items may be admitted right now.
// The result may be zero or negative; callers must treat non-positive as no
// capacity. Counts are always read fresh from the store, never cached, so
// the bound holds across concurrent worker processes.
func (a *AdmissionController) AvailableCapacity(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	windowStart := now.Add(-a.window)
	staleBefore := now.Add(-a.staleAfter)

	processing, err := a.items.CountInFlight(ctx, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight items: %w", err)
	}

	recentlyFinished, err := a.items.CountRecentlyFinished(ctx, windowStart)
	if err != nil {
		return 0, fmt.Errorf("failed to count recently finished items: %w", err)
	}

	capacity := a.maxInFlight - (processing + recentlyFinished)

	a.logger.Debug("computed admission capacity",
		slog.Int("processing", processing),
		slog.Int("recently_finished", recentlyFinished),
		slog.Int("capacity", capacity))

	return capacity, nil
}
