package importer

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/store"
)

// mockData is the shared in-memory state behind the mock stores. A single
// mutex stands in for the real store's row-level atomicity.
type mockData struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.ImportSession
	items    map[uuid.UUID]*domain.StagedItem
}

// MockStagingStore implements StagingStores in memory for testing. The
// session and item stores share state, and InTransaction simply runs the
// function against them (every mock operation is already atomic under the
// shared mutex).
type MockStagingStore struct {
	data         *mockData
	SessionStore *MockSessionStore
	ItemStore    *MockItemStore
}

// NewMockStagingStore creates an empty in-memory staging store.
func NewMockStagingStore() *MockStagingStore {
	data := &mockData{
		sessions: make(map[uuid.UUID]*domain.ImportSession),
		items:    make(map[uuid.UUID]*domain.StagedItem),
	}
	return &MockStagingStore{
		data:         data,
		SessionStore: &MockSessionStore{data: data},
		ItemStore:    &MockItemStore{data: data},
	}
}

var _ StagingStores = (*MockStagingStore)(nil)

func (m *MockStagingStore) Sessions() store.SessionStore { return m.SessionStore }
func (m *MockStagingStore) Items() store.ItemStore       { return m.ItemStore }

func (m *MockStagingStore) InTransaction(
	ctx context.Context,
	fn func(sessions store.SessionStore, items store.ItemStore) error,
) error {
	return fn(m.SessionStore, m.ItemStore)
}

// AddSession seeds a session directly, bypassing validation.
func (m *MockStagingStore) AddSession(session *domain.ImportSession) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	copied := *session
	m.data.sessions[session.ID] = &copied
}

// AddItem seeds an item directly, bypassing validation.
func (m *MockStagingStore) AddItem(item *domain.StagedItem) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	copied := *item
	m.data.items[item.ID] = &copied
}

// Session returns a snapshot of the stored session, or nil.
func (m *MockStagingStore) Session(id uuid.UUID) *domain.ImportSession {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	if s, ok := m.data.sessions[id]; ok {
		copied := *s
		return &copied
	}
	return nil
}

// Item returns a snapshot of the stored item, or nil.
func (m *MockStagingStore) Item(id uuid.UUID) *domain.StagedItem {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	if i, ok := m.data.items[id]; ok {
		copied := *i
		return &copied
	}
	return nil
}

// MockSessionStore implements store.SessionStore over the shared mock state.
// Individual methods can be overridden through the corresponding Fn fields.
type MockSessionStore struct {
	data *mockData

	GetByIDFn           func(ctx context.Context, id uuid.UUID) (*domain.ImportSession, error)
	CompleteIfDrainedFn func(ctx context.Context, id uuid.UUID, message string) (bool, error)
	TouchFn             func(ctx context.Context, id uuid.UUID, at time.Time) error
}

var _ store.SessionStore = (*MockSessionStore)(nil)

func (s *MockSessionStore) Create(ctx context.Context, session *domain.ImportSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	if _, exists := s.data.sessions[session.ID]; exists {
		return store.ErrDuplicate
	}
	copied := *session
	s.data.sessions[session.ID] = &copied
	return nil
}

func (s *MockSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ImportSession, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}

	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	session, ok := s.data.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *MockSessionStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	session, ok := s.data.sessions[id]
	if !ok {
		return store.ErrSessionNotFound
	}
	session.Status = status
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MockSessionStore) MarkRunning(ctx context.Context, ids []uuid.UUID) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	for _, id := range ids {
		if session, ok := s.data.sessions[id]; ok && session.Status == domain.SessionStatusPending {
			session.Status = domain.SessionStatusRunning
			session.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *MockSessionStore) CompleteIfDrained(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	if s.CompleteIfDrainedFn != nil {
		return s.CompleteIfDrainedFn(ctx, id, message)
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	session, ok := s.data.sessions[id]
	if !ok {
		return false, nil
	}
	if !session.IsActive() {
		return false, nil
	}

	for _, item := range s.data.items {
		if item.SessionID != id {
			continue
		}
		if item.Status == domain.ItemStatusPending || item.Status == domain.ItemStatusProcessing {
			return false, nil
		}
	}

	session.Status = domain.SessionStatusCompleted
	session.Message = message
	session.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MockSessionStore) TouchLastProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.TouchFn != nil {
		return s.TouchFn(ctx, id, at)
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	if session, ok := s.data.sessions[id]; ok {
		session.LastProcessedAt = at
		session.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MockSessionStore) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	var ids []uuid.UUID
	for id, session := range s.data.sessions {
		if session.IsActive() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MockSessionStore) CountByStatus(ctx context.Context) (map[domain.SessionStatus]int, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	counts := make(map[domain.SessionStatus]int)
	for _, session := range s.data.sessions {
		counts[session.Status]++
	}
	return counts, nil
}

func (s *MockSessionStore) WithTx(tx *sql.Tx) store.SessionStore { return s }

// MockItemStore implements store.ItemStore over the shared mock state.
// Individual methods can be overridden through the corresponding Fn fields.
type MockItemStore struct {
	data *mockData

	NextBatchFn      func(ctx context.Context, limit int) ([]*domain.StagedItem, error)
	MarkProcessingFn func(ctx context.Context, ids []uuid.UUID, startedAt time.Time) ([]uuid.UUID, error)
	CompleteFn       func(ctx context.Context, id uuid.UUID, result domain.ItemResult, reason string, bookmarkID *uuid.UUID, at time.Time) error
	FailFn           func(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
}

var _ store.ItemStore = (*MockItemStore)(nil)

func (s *MockItemStore) CreateBatch(ctx context.Context, items []*domain.StagedItem) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	for _, item := range items {
		copied := *item
		s.data.items[item.ID] = &copied
	}
	return nil
}

func (s *MockItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedItem, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	item, ok := s.data.items[id]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *MockItemStore) NextBatch(ctx context.Context, limit int) ([]*domain.StagedItem, error) {
	if s.NextBatchFn != nil {
		return s.NextBatchFn(ctx, limit)
	}

	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}

	var eligible []*domain.StagedItem
	for _, item := range s.data.items {
		if item.Status != domain.ItemStatusPending {
			continue
		}
		session, ok := s.data.sessions[item.SessionID]
		if !ok || !session.IsActive() {
			continue
		}
		eligible = append(eligible, item)
	}

	sort.Slice(eligible, func(i, j int) bool {
		si := s.data.sessions[eligible[i].SessionID]
		sj := s.data.sessions[eligible[j].SessionID]
		if !si.LastProcessedAt.Equal(sj.LastProcessedAt) {
			return si.LastProcessedAt.Before(sj.LastProcessedAt)
		}
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID.String() < eligible[j].ID.String()
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	batch := make([]*domain.StagedItem, len(eligible))
	for i, item := range eligible {
		copied := *item
		batch[i] = &copied
	}
	return batch, nil
}

func (s *MockItemStore) MarkProcessing(ctx context.Context, ids []uuid.UUID, startedAt time.Time) ([]uuid.UUID, error) {
	if s.MarkProcessingFn != nil {
		return s.MarkProcessingFn(ctx, ids, startedAt)
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	var marked []uuid.UUID
	for _, id := range ids {
		item, ok := s.data.items[id]
		if !ok || item.Status != domain.ItemStatusPending {
			continue
		}
		item.Status = domain.ItemStatusProcessing
		started := startedAt
		item.ProcessingStartedAt = &started
		item.UpdatedAt = time.Now().UTC()
		marked = append(marked, id)
	}
	return marked, nil
}

func (s *MockItemStore) ResetToPending(ctx context.Context, id uuid.UUID) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	item, ok := s.data.items[id]
	if !ok || item.Status != domain.ItemStatusProcessing {
		return nil
	}
	item.Status = domain.ItemStatusPending
	item.ProcessingStartedAt = nil
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MockItemStore) ResetStale(ctx context.Context, before time.Time) (int64, error) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	var count int64
	for _, item := range s.data.items {
		if item.Status != domain.ItemStatusProcessing {
			continue
		}
		if item.ProcessingStartedAt == nil || !item.ProcessingStartedAt.Before(before) {
			continue
		}
		item.Status = domain.ItemStatusPending
		item.ProcessingStartedAt = nil
		item.UpdatedAt = time.Now().UTC()
		count++
	}
	return count, nil
}

func (s *MockItemStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	result domain.ItemResult,
	reason string,
	bookmarkID *uuid.UUID,
	at time.Time,
) error {
	if s.CompleteFn != nil {
		return s.CompleteFn(ctx, id, result, reason, bookmarkID, at)
	}
	return s.finish(id, domain.ItemStatusCompleted, result, reason, bookmarkID, at)
}

func (s *MockItemStore) Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	if s.FailFn != nil {
		return s.FailFn(ctx, id, reason, at)
	}
	return s.finish(id, domain.ItemStatusFailed, domain.ResultRejected, reason, nil, at)
}

func (s *MockItemStore) finish(
	id uuid.UUID,
	status domain.ItemStatus,
	result domain.ItemResult,
	reason string,
	bookmarkID *uuid.UUID,
	at time.Time,
) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	item, ok := s.data.items[id]
	if !ok || item.Status != domain.ItemStatusProcessing {
		return fmt.Errorf("%w: item %s is no longer processing", store.ErrUpdateFailed, id)
	}

	item.Status = status
	item.Result = &result
	item.ResultReason = reason
	item.ResultBookmarkID = bookmarkID
	completedAt := at
	item.CompletedAt = &completedAt
	item.ProcessingStartedAt = nil
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MockItemStore) CountInFlight(ctx context.Context, staleBefore time.Time) (int, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	count := 0
	for _, item := range s.data.items {
		if item.Status != domain.ItemStatusProcessing {
			continue
		}
		if item.ProcessingStartedAt != nil && item.ProcessingStartedAt.After(staleBefore) {
			count++
		}
	}
	return count, nil
}

func (s *MockItemStore) CountRecentlyFinished(ctx context.Context, since time.Time) (int, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	count := 0
	for _, item := range s.data.items {
		if !item.IsTerminal() {
			continue
		}
		if item.CompletedAt != nil && item.CompletedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *MockItemStore) CountActive(ctx context.Context, sessionID uuid.UUID) (int, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	count := 0
	for _, item := range s.data.items {
		if item.SessionID != sessionID {
			continue
		}
		if item.Status == domain.ItemStatusPending || item.Status == domain.ItemStatusProcessing {
			count++
		}
	}
	return count, nil
}

func (s *MockItemStore) CountPending(ctx context.Context) (int, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	count := 0
	for _, item := range s.data.items {
		if item.Status == domain.ItemStatusPending {
			count++
		}
	}
	return count, nil
}

func (s *MockItemStore) StatsBySession(ctx context.Context, sessionID uuid.UUID) (store.SessionStats, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	var stats store.SessionStats
	for _, item := range s.data.items {
		if item.SessionID != sessionID {
			continue
		}
		stats.Total++
		if item.Status == domain.ItemStatusFailed {
			stats.Failed++
		}
		if item.Result != nil {
			switch *item.Result {
			case domain.ResultAccepted:
				stats.Accepted++
			case domain.ResultSkippedDuplicate:
				stats.Duplicates++
			}
		}
	}
	return stats, nil
}

func (s *MockItemStore) WithTx(tx *sql.Tx) store.ItemStore { return s }
