package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(stores *MockStagingStore, bookmarks *MockBookmarkService, metrics Metrics) *Processor {
	return NewProcessor(stores.Sessions(), stores.Items(), bookmarks, bookmarks, bookmarks, metrics, testLogger())
}

// admitItem marks a seeded pending item as processing so the processor can
// record a terminal outcome for it.
func admitItem(t *testing.T, stores *MockStagingStore, item *domain.StagedItem) *domain.StagedItem {
	t.Helper()

	marked, err := stores.Items().MarkProcessing(context.Background(), []uuid.UUID{item.ID}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, marked, 1)
	return stores.Item(item.ID)
}

func TestProcessLinkItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	stores := NewMockStagingStore()
	session := seedSession(t, stores, domain.SessionStatusRunning)
	item := seedLinkItem(t, stores, session.ID, "https://example.com/article")
	item.Title = "An article"
	item.Tags = []string{"reading", "tech"}
	stores.AddItem(item)
	admitted := admitItem(t, stores, item)

	bookmarks := NewMockBookmarkService()
	metrics := newCountingMetrics()
	processor := newTestProcessor(stores, bookmarks, metrics)

	before := stores.Session(session.ID).LastProcessedAt
	require.NoError(t, processor.Process(ctx, admitted))

	stored := stores.Item(item.ID)
	assert.Equal(t, domain.ItemStatusCompleted, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, domain.ResultAccepted, *stored.Result)
	assert.NotNil(t, stored.ResultBookmarkID)
	assert.NotNil(t, stored.CompletedAt)

	requests := bookmarks.CreatedRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, domain.ItemTypeLink, requests[0].Type)
	assert.Equal(t, "https://example.com/article", requests[0].URL)
	assert.Equal(t, "An article", requests[0].Title)

	tagCalls := bookmarks.TagCalls(*stored.ResultBookmarkID)
	require.Len(t, tagCalls, 1)
	assert.Equal(t, []string{"reading", "tech"}, tagCalls[0])

	assert.Equal(t, 1, metrics.processed[string(domain.ResultAccepted)])
	assert.True(t, stores.Session(session.ID).LastProcessedAt.After(before))
}

func TestProcessDuplicateURL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	stores := NewMockStagingStore()
	session := seedSession(t, stores, domain.SessionStatusRunning)

	first := seedLinkItem(t, stores, session.ID, "https://example.com/same")
	second := seedLinkItem(t, stores, session.ID, "https://example.com/same")
	second.Tags = []string{"later"}
	stores.AddItem(second)

	bookmarks := NewMockBookmarkService()
	metrics := newCountingMetrics()
	processor := newTestProcessor(stores, bookmarks, metrics)

	require.NoError(t, processor.Process(ctx, admitItem(t, stores, first)))
	require.NoError(t, processor.Process(ctx, admitItem(t, stores, second)))

	firstStored := stores.Item(first.ID)
	secondStored := stores.Item(second.ID)

	require.NotNil(t, firstStored.Result)
	assert.Equal(t, domain.ResultAccepted, *firstStored.Result)

	assert.Equal(t, domain.ItemStatusCompleted, secondStored.Status)
	require.NotNil(t, secondStored.Result)
	assert.Equal(t, domain.ResultSkippedDuplicate, *secondStored.Result)
	assert.Equal(t, "URL already exists", secondStored.ResultReason)

	// Both point at the same bookmark, and the duplicate still merged its tags.
	require.NotNil(t, secondStored.ResultBookmarkID)
	assert.Equal(t, *firstStored.ResultBookmarkID, *secondStored.ResultBookmarkID)
	assert.Len(t, bookmarks.TagCalls(*secondStored.ResultBookmarkID), 1)

	assert.Equal(t, 1, metrics.processed[string(domain.ResultSkippedDuplicate)])
}

func TestProcessRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name       string
		setup      func(item *domain.StagedItem)
		wantReason string
	}{
		{
			name: "link without URL",
			setup: func(item *domain.StagedItem) {
				item.Type = domain.ItemTypeLink
				item.URL = ""
			},
			wantReason: "URL is required for link bookmarks",
		},
		{
			name: "text without content",
			setup: func(item *domain.StagedItem) {
				item.Type = domain.ItemTypeText
				item.URL = ""
				item.Content = ""
			},
			wantReason: "Text content is required for text bookmarks",
		},
		{
			name: "asset item",
			setup: func(item *domain.StagedItem) {
				item.Type = domain.ItemTypeAsset
				item.URL = ""
			},
			wantReason: "Asset bookmarks not yet supported",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stores := NewMockStagingStore()
			session := seedSession(t, stores, domain.SessionStatusRunning)
			item := seedLinkItem(t, stores, session.ID, "https://example.com/x")
			tc.setup(item)
			stores.AddItem(item)

			bookmarks := NewMockBookmarkService()
			metrics := newCountingMetrics()
			processor := newTestProcessor(stores, bookmarks, metrics)

			before := stores.Session(session.ID).LastProcessedAt
			require.NoError(t, processor.Process(ctx, admitItem(t, stores, item)))

			stored := stores.Item(item.ID)
			assert.Equal(t, domain.ItemStatusFailed, stored.Status)
			require.NotNil(t, stored.Result)
			assert.Equal(t, domain.ResultRejected, *stored.Result)
			assert.Equal(t, tc.wantReason, stored.ResultReason)
			assert.Empty(t, bookmarks.CreatedRequests())

			assert.Equal(t, 1, metrics.processed[string(domain.ResultRejected)])

			// Rejections still advance fairness ordering.
			assert.True(t, stores.Session(session.ID).LastProcessedAt.After(before))
		})
	}
}

func TestProcessPausedSessionDrainsItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	stores := NewMockStagingStore()
	session := seedSession(t, stores, domain.SessionStatusPaused)
	item := seedLinkItem(t, stores, session.ID, "https://example.com/paused")
	admitted := admitItem(t, stores, item)

	bookmarks := NewMockBookmarkService()
	processor := newTestProcessor(stores, bookmarks, NopMetrics{})

	require.NoError(t, processor.Process(ctx, admitted))

	stored := stores.Item(item.ID)
	assert.Equal(t, domain.ItemStatusPending, stored.Status)
	assert.Nil(t, stored.Result)
	assert.Nil(t, stored.ProcessingStartedAt)
	assert.Empty(t, bookmarks.CreatedRequests())
}

func TestProcessDownstreamFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creation failure rejects the item", func(t *testing.T) {
		t.Parallel()

		stores := NewMockStagingStore()
		session := seedSession(t, stores, domain.SessionStatusRunning)
		item := seedLinkItem(t, stores, session.ID, "https://example.com/down")
		admitted := admitItem(t, stores, item)

		bookmarks := NewMockBookmarkService()
		bookmarks.CreateFn = func(ctx context.Context, req CreateBookmarkRequest) (CreateBookmarkResult, error) {
			return CreateBookmarkResult{}, errors.New("pipeline unavailable")
		}
		processor := newTestProcessor(stores, bookmarks, NopMetrics{})

		require.NoError(t, processor.Process(ctx, admitted))

		stored := stores.Item(item.ID)
		assert.Equal(t, domain.ItemStatusFailed, stored.Status)
		assert.Equal(t, "pipeline unavailable", stored.ResultReason)
	})

	t.Run("tag failure rejects the item", func(t *testing.T) {
		t.Parallel()

		stores := NewMockStagingStore()
		session := seedSession(t, stores, domain.SessionStatusRunning)
		item := seedLinkItem(t, stores, session.ID, "https://example.com/tags")
		item.Tags = []string{"a"}
		stores.AddItem(item)
		admitted := admitItem(t, stores, item)

		bookmarks := NewMockBookmarkService()
		bookmarks.AttachTagsFn = func(ctx context.Context, bookmarkID uuid.UUID, names []string) error {
			return errors.New("tag service down")
		}
		processor := newTestProcessor(stores, bookmarks, NopMetrics{})

		require.NoError(t, processor.Process(ctx, admitted))

		stored := stores.Item(item.ID)
		assert.Equal(t, domain.ItemStatusFailed, stored.Status)
		assert.Equal(t, "tag service down", stored.ResultReason)
	})

	t.Run("list failure is swallowed", func(t *testing.T) {
		t.Parallel()

		stores := NewMockStagingStore()
		session := seedSession(t, stores, domain.SessionStatusRunning)
		rootList := uuid.New()
		session.RootListID = &rootList
		stores.AddSession(session)

		item := seedLinkItem(t, stores, session.ID, "https://example.com/lists")
		admitted := admitItem(t, stores, item)

		bookmarks := NewMockBookmarkService()
		bookmarks.AddToListFn = func(ctx context.Context, listID, bookmarkID uuid.UUID) error {
			return errors.New("list gone")
		}
		processor := newTestProcessor(stores, bookmarks, NopMetrics{})

		require.NoError(t, processor.Process(ctx, admitted))

		stored := stores.Item(item.ID)
		assert.Equal(t, domain.ItemStatusCompleted, stored.Status)
		require.NotNil(t, stored.Result)
		assert.Equal(t, domain.ResultAccepted, *stored.Result)
	})
}

func TestProcessListAttachment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	stores := NewMockStagingStore()
	session := seedSession(t, stores, domain.SessionStatusRunning)
	rootList := uuid.New()
	session.RootListID = &rootList
	stores.AddSession(session)

	extraList := uuid.New()
	item := seedLinkItem(t, stores, session.ID, "https://example.com/listed")
	item.ListIDs = []uuid.UUID{extraList, rootList}
	stores.AddItem(item)
	admitted := admitItem(t, stores, item)

	bookmarks := NewMockBookmarkService()
	processor := newTestProcessor(stores, bookmarks, NopMetrics{})

	require.NoError(t, processor.Process(ctx, admitted))

	// Root list and item lists, deduplicated.
	calls := bookmarks.ListCalls()
	require.Len(t, calls, 2)
	attached := map[uuid.UUID]bool{}
	for _, call := range calls {
		attached[call.ListID] = true
	}
	assert.True(t, attached[rootList])
	assert.True(t, attached[extraList])
}
