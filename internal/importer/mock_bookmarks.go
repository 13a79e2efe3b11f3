package importer

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// listAttachment records one AddToList call for assertions.
type listAttachment struct {
	ListID     uuid.UUID
	BookmarkID uuid.UUID
}

// MockBookmarkService implements the downstream collaborator interfaces for
// testing. By default CreateBookmark deduplicates on URL the way the real
// pipeline does: the second creation of the same URL returns the first
// bookmark's ID with AlreadyExists set.
type MockBookmarkService struct {
	mu sync.Mutex

	CreateFn     func(ctx context.Context, req CreateBookmarkRequest) (CreateBookmarkResult, error)
	AttachTagsFn func(ctx context.Context, bookmarkID uuid.UUID, names []string) error
	AddToListFn  func(ctx context.Context, listID, bookmarkID uuid.UUID) error

	byURL       map[string]uuid.UUID
	createOrder []CreateBookmarkRequest
	tagCalls    map[uuid.UUID][][]string
	listCalls   []listAttachment
}

// NewMockBookmarkService creates a MockBookmarkService with default behavior.
func NewMockBookmarkService() *MockBookmarkService {
	return &MockBookmarkService{
		byURL:    make(map[string]uuid.UUID),
		tagCalls: make(map[uuid.UUID][][]string),
	}
}

var (
	_ BookmarkCreator = (*MockBookmarkService)(nil)
	_ TagAttacher     = (*MockBookmarkService)(nil)
	_ ListAttacher    = (*MockBookmarkService)(nil)
)

func (m *MockBookmarkService) CreateBookmark(ctx context.Context, req CreateBookmarkRequest) (CreateBookmarkResult, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.createOrder = append(m.createOrder, req)

	if req.URL != "" {
		if id, exists := m.byURL[req.URL]; exists {
			return CreateBookmarkResult{ID: id, AlreadyExists: true}, nil
		}
		id := uuid.New()
		m.byURL[req.URL] = id
		return CreateBookmarkResult{ID: id}, nil
	}

	return CreateBookmarkResult{ID: uuid.New()}, nil
}

func (m *MockBookmarkService) AttachTags(ctx context.Context, bookmarkID uuid.UUID, names []string) error {
	if m.AttachTagsFn != nil {
		return m.AttachTagsFn(ctx, bookmarkID, names)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tagCalls[bookmarkID] = append(m.tagCalls[bookmarkID], names)
	return nil
}

func (m *MockBookmarkService) AddToList(ctx context.Context, listID, bookmarkID uuid.UUID) error {
	if m.AddToListFn != nil {
		return m.AddToListFn(ctx, listID, bookmarkID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls = append(m.listCalls, listAttachment{ListID: listID, BookmarkID: bookmarkID})
	return nil
}

// CreatedRequests returns the creation calls in order.
func (m *MockBookmarkService) CreatedRequests() []CreateBookmarkRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CreateBookmarkRequest, len(m.createOrder))
	copy(out, m.createOrder)
	return out
}

// TagCalls returns the tag attachments recorded for a bookmark.
func (m *MockBookmarkService) TagCalls(bookmarkID uuid.UUID) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([][]string(nil), m.tagCalls[bookmarkID]...)
}

// ListCalls returns every list attachment in call order.
func (m *MockBookmarkService) ListCalls() []listAttachment {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]listAttachment(nil), m.listCalls...)
}
