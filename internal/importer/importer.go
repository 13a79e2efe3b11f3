package importer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/store"
)

// CreateBookmarkRequest is the payload sent to the downstream
// bookmark-creation pipeline. Type discriminates which content field is
// meaningful: URL for link bookmarks, Text for text bookmarks.
type CreateBookmarkRequest struct {
	Type      domain.ItemType
	URL       string
	Text      string
	Title     string
	Note      string
	CreatedAt *time.Time
}

// CreateBookmarkResult is the downstream pipeline's response. The creation
// call is idempotent: submitting a URL that already exists returns the
// existing bookmark's ID with AlreadyExists set instead of an error.
type CreateBookmarkResult struct {
	ID            uuid.UUID
	AlreadyExists bool
}

// BookmarkCreator creates bookmarks in the downstream pipeline.
// Version: 1.0
type BookmarkCreator interface {
	// CreateBookmark creates a bookmark, or reports the existing one when
	// the request duplicates a bookmark the user already has.
	CreateBookmark(ctx context.Context, req CreateBookmarkRequest) (CreateBookmarkResult, error)
}

// TagAttacher attaches tags to existing bookmarks.
// Version: 1.0
type TagAttacher interface {
	// AttachTags attaches the named tags to the bookmark, creating tags
	// that do not exist yet.
	AttachTags(ctx context.Context, bookmarkID uuid.UUID, names []string) error
}

// ListAttacher adds bookmarks to collections.
// Version: 1.0
type ListAttacher interface {
	// AddToList adds the bookmark to the list. Adding a bookmark already in
	// the list is not an error.
	AddToList(ctx context.Context, listID, bookmarkID uuid.UUID) error
}

// Metrics is the observability sink the scheduler reports into. It is
// injected at construction; scheduler logic never branches on it, and
// implementations must never fail in a way that affects scheduling.
// Version: 1.0
type Metrics interface {
	// RecordProcessed counts one item reaching a terminal state, labeled by
	// result (accepted, skipped_duplicate, rejected).
	RecordProcessed(result string)

	// RecordStaleReset counts items reclaimed from stuck processing.
	RecordStaleReset(count int)

	// ObserveBatchDuration records how long one batch took to settle.
	ObserveBatchDuration(d time.Duration)

	// SetInFlight sets the current non-stale processing item count.
	SetInFlight(n int)

	// SetPending sets the current pending item count.
	SetPending(n int)

	// SetSessions sets the number of sessions in the given status.
	SetSessions(status string, n int)
}

// NopMetrics is a Metrics implementation that discards everything.
// Useful as a default and in tests.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) RecordProcessed(string)             {}
func (NopMetrics) RecordStaleReset(int)               {}
func (NopMetrics) ObserveBatchDuration(time.Duration) {}
func (NopMetrics) SetInFlight(int)                    {}
func (NopMetrics) SetPending(int)                     {}
func (NopMetrics) SetSessions(string, int)            {}

// StagingStores bundles the session and item stores together with a way to
// run multi-store updates atomically. The scheduler uses the transactional
// form for batch admission, where the session pending-to-running switch and
// the item pending-to-processing switch must commit together.
// Version: 1.0
type StagingStores interface {
	// Sessions returns the session store.
	Sessions() store.SessionStore

	// Items returns the item store.
	Items() store.ItemStore

	// InTransaction executes fn against transactional views of both stores,
	// committing if fn returns nil and rolling back otherwise.
	InTransaction(ctx context.Context, fn func(sessions store.SessionStore, items store.ItemStore) error) error
}
