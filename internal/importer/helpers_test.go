package importer

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedSession creates a session in the given status and stores it.
func seedSession(t *testing.T, stores *MockStagingStore, status domain.SessionStatus) *domain.ImportSession {
	t.Helper()

	session, err := domain.NewImportSession(uuid.New(), "test import", nil)
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	session.Status = status
	stores.AddSession(session)
	return session
}

// seedLinkItem creates a pending link item for the session and stores it.
func seedLinkItem(t *testing.T, stores *MockStagingStore, sessionID uuid.UUID, url string) *domain.StagedItem {
	t.Helper()

	item, err := domain.NewStagedItem(sessionID, domain.ItemTypeLink)
	if err != nil {
		t.Fatalf("failed to build item: %v", err)
	}
	item.URL = url
	stores.AddItem(item)
	return item
}

// seedProcessingItem creates an item already in processing since startedAt.
func seedProcessingItem(t *testing.T, stores *MockStagingStore, sessionID uuid.UUID, startedAt time.Time) *domain.StagedItem {
	t.Helper()

	item, err := domain.NewStagedItem(sessionID, domain.ItemTypeLink)
	if err != nil {
		t.Fatalf("failed to build item: %v", err)
	}
	item.URL = "https://example.com/" + item.ID.String()
	item.Status = domain.ItemStatusProcessing
	item.ProcessingStartedAt = &startedAt
	stores.AddItem(item)
	return item
}

// seedFinishedItem creates an item that reached a terminal state at the
// given time.
func seedFinishedItem(t *testing.T, stores *MockStagingStore, sessionID uuid.UUID, result domain.ItemResult, completedAt time.Time) *domain.StagedItem {
	t.Helper()

	item, err := domain.NewStagedItem(sessionID, domain.ItemTypeLink)
	if err != nil {
		t.Fatalf("failed to build item: %v", err)
	}
	item.URL = "https://example.com/" + item.ID.String()
	if result == domain.ResultRejected {
		item.Status = domain.ItemStatusFailed
	} else {
		item.Status = domain.ItemStatusCompleted
	}
	item.Result = &result
	item.CompletedAt = &completedAt
	stores.AddItem(item)
	return item
}

// countingMetrics records metric calls for assertions.
type countingMetrics struct {
	NopMetrics

	processed   map[string]int
	staleResets int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{processed: make(map[string]int)}
}

func (m *countingMetrics) RecordProcessed(result string) { m.processed[result]++ }
func (m *countingMetrics) RecordStaleReset(count int)    { m.staleResets += count }
