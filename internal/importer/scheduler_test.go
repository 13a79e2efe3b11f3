package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig drains synchronously in tests: a window of one nanosecond means
// finished items never linger as pressure between iterations.
func fastConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxInFlight:     10,
		BatchSize:       10,
		AdmissionWindow: time.Nanosecond,
		StaleAfter:      time.Hour,
		PollInterval:    time.Millisecond,
		ReclaimEvery:    1000,
	}
}

// drain runs scheduler iterations until two consecutive passes admit nothing.
func drain(t *testing.T, s *Scheduler) {
	t.Helper()

	idle := 0
	for i := 0; i < 100; i++ {
		processed, err := s.runIteration(context.Background())
		require.NoError(t, err)
		if processed == 0 {
			idle++
			if idle == 2 {
				return
			}
			continue
		}
		idle = 0
	}
	t.Fatal("backlog did not drain within 100 iterations")
}

func TestSchedulerFairness(t *testing.T) {
	t.Parallel()

	stores := NewMockStagingStore()
	bookmarks := NewMockBookmarkService()

	// Three sessions, three items each. Item URLs encode the session index
	// so the creation order reveals the interleaving.
	const sessionCount = 3
	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < sessionCount; i++ {
		session := seedSession(t, stores, domain.SessionStatusPending)
		session.LastProcessedAt = base.Add(time.Duration(i) * time.Second)
		stores.AddSession(session)

		for j := 0; j < 3; j++ {
			item := seedLinkItem(t, stores, session.ID,
				fmt.Sprintf("https://example.com/s%d/item%d", i, j))
			item.CreatedAt = base.Add(time.Duration(j) * time.Second)
			stores.AddItem(item)
		}
	}

	config := fastConfig()
	config.BatchSize = 1
	scheduler := NewScheduler(stores, bookmarks, bookmarks, bookmarks, NopMetrics{}, config, testLogger())

	drain(t, scheduler)

	requests := bookmarks.CreatedRequests()
	require.Len(t, requests, 9)

	// One item at a time, the scheduler must rotate across sessions: every
	// window of three consecutive creations touches all three sessions.
	for start := 0; start+sessionCount <= len(requests); start += sessionCount {
		seen := map[string]bool{}
		for _, req := range requests[start : start+sessionCount] {
			var si, ij int
			_, err := fmt.Sscanf(req.URL, "https://example.com/s%d/item%d", &si, &ij)
			require.NoError(t, err)
			seen[fmt.Sprintf("s%d", si)] = true
		}
		assert.Len(t, seen, sessionCount, "window starting at %d did not rotate sessions", start)
	}
}

func TestSchedulerDrainsSessionToCompletion(t *testing.T) {
	t.Parallel()

	stores := NewMockStagingStore()
	bookmarks := NewMockBookmarkService()

	session := seedSession(t, stores, domain.SessionStatusPending)
	before := stores.Session(session.ID).LastProcessedAt

	seedLinkItem(t, stores, session.ID, "https://example.com/one")
	seedLinkItem(t, stores, session.ID, "https://example.com/one")

	asset, err := domain.NewStagedItem(session.ID, domain.ItemTypeAsset)
	require.NoError(t, err)
	stores.AddItem(asset)

	scheduler := NewScheduler(stores, bookmarks, bookmarks, bookmarks, NopMetrics{}, fastConfig(), testLogger())

	drain(t, scheduler)

	completed := stores.Session(session.ID)
	assert.Equal(t, domain.SessionStatusCompleted, completed.Status)
	assert.Equal(t, "imported 1 bookmarks, 1 duplicates, 1 failed", completed.Message)
	assert.True(t, completed.LastProcessedAt.After(before))

	assert.Equal(t, domain.ItemStatusFailed, stores.Item(asset.ID).Status)
}

func TestSchedulerBackpressureStall(t *testing.T) {
	t.Parallel()

	stores := NewMockStagingStore()
	bookmarks := NewMockBookmarkService()

	session := seedSession(t, stores, domain.SessionStatusPending)
	pending := seedLinkItem(t, stores, session.ID, "https://example.com/blocked")

	// Recently finished work fills the whole admission window.
	other := seedSession(t, stores, domain.SessionStatusRunning)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedFinishedItem(t, stores, other.ID, domain.ResultAccepted, now)
	}

	config := fastConfig()
	config.MaxInFlight = 5
	config.AdmissionWindow = time.Hour
	scheduler := NewScheduler(stores, bookmarks, bookmarks, bookmarks, NopMetrics{}, config, testLogger())

	processed, err := scheduler.runIteration(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)

	assert.Equal(t, domain.ItemStatusPending, stores.Item(pending.ID).Status)
	assert.Empty(t, bookmarks.CreatedRequests())
}

func TestSchedulerAdmitsOnlyMarkedItems(t *testing.T) {
	t.Parallel()

	stores := NewMockStagingStore()
	bookmarks := NewMockBookmarkService()

	session := seedSession(t, stores, domain.SessionStatusPending)
	mine := seedLinkItem(t, stores, session.ID, "https://example.com/mine")
	theirs := seedLinkItem(t, stores, session.ID, "https://example.com/theirs")

	// A concurrent worker wins the second item between select and admit.
	stores.ItemStore.MarkProcessingFn = func(ctx context.Context, ids []uuid.UUID, startedAt time.Time) ([]uuid.UUID, error) {
		var kept []uuid.UUID
		for _, id := range ids {
			if id != theirs.ID {
				kept = append(kept, id)
			}
		}
		stores.ItemStore.MarkProcessingFn = nil
		return stores.ItemStore.MarkProcessing(ctx, kept, startedAt)
	}

	config := fastConfig()
	scheduler := NewScheduler(stores, bookmarks, bookmarks, bookmarks, NopMetrics{}, config, testLogger())

	processed, err := scheduler.runIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	assert.Equal(t, domain.ItemStatusCompleted, stores.Item(mine.ID).Status)
	assert.Equal(t, domain.ItemStatusPending, stores.Item(theirs.ID).Status)

	requests := bookmarks.CreatedRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, "https://example.com/mine", requests[0].URL)
}

func TestSchedulerReclaimCadence(t *testing.T) {
	t.Parallel()

	stores := NewMockStagingStore()
	bookmarks := NewMockBookmarkService()

	session := seedSession(t, stores, domain.SessionStatusRunning)
	stale := seedProcessingItem(t, stores, session.ID, time.Now().UTC().Add(-2*time.Hour))

	scheduler := NewScheduler(stores, bookmarks, bookmarks, bookmarks, NopMetrics{}, fastConfig(), testLogger())

	// The first iteration always reclaims, so a restarted worker recovers
	// orphans without waiting a full cadence.
	drain(t, scheduler)

	assert.Equal(t, domain.ItemStatusCompleted, stores.Item(stale.ID).Status)
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	stores := NewMockStagingStore()
	bookmarks := NewMockBookmarkService()

	scheduler := NewScheduler(stores, bookmarks, bookmarks, bookmarks, NopMetrics{}, fastConfig(), testLogger())

	require.NoError(t, scheduler.Start())
	assert.Error(t, scheduler.Start(), "second start must fail")

	scheduler.Stop()
	scheduler.Stop() // idempotent

	assert.Error(t, scheduler.Start(), "start after stop must fail")
}
