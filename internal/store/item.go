package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
)

// SessionStats summarizes the terminal outcomes of a session's items.
type SessionStats struct {
	Total      int
	Accepted   int
	Duplicates int
	Failed     int
}

// ItemStore defines the interface for staged item persistence. Like
// SessionStore, every state transition is conditional on the item's current
// status; the scheduler relies on that to stay correct when several worker
// processes poll the same backlog.
// Version: 1.0
type ItemStore interface {
	// CreateBatch saves a batch of staged items in a single statement.
	// All items must belong to an existing session.
	CreateBatch(ctx context.Context, items []*domain.StagedItem) error

	// GetByID retrieves an item by its unique ID.
	// Returns ErrItemNotFound if the item does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedItem, error)

	// NextBatch returns up to limit pending items whose session is pending
	// or running, ordered by the session's last-processed timestamp
	// ascending and then by item creation time ascending. Sessions served
	// least recently sort first, which is what spreads scarce capacity
	// fairly across sessions instead of draining one backlog at a time.
	NextBatch(ctx context.Context, limit int) ([]*domain.StagedItem, error)

	// MarkProcessing transitions the given items from pending to processing
	// and stamps their processing start time, in one atomic statement.
	// Items no longer pending (e.g. grabbed by another worker) are skipped.
	// Returns the IDs of the items actually transitioned; callers must only
	// process those.
	MarkProcessing(ctx context.Context, ids []uuid.UUID, startedAt time.Time) ([]uuid.UUID, error)

	// ResetToPending returns a processing item to the pending status and
	// clears its processing start time. Used for cooperative pause drain.
	ResetToPending(ctx context.Context, id uuid.UUID) error

	// ResetStale resets every item stuck in processing since before the
	// given cutoff back to pending, clearing the processing start time, in
	// one atomic statement. Returns the number of items reset.
	ResetStale(ctx context.Context, before time.Time) (int64, error)

	// Complete marks a processing item completed with the given result,
	// reason, and downstream bookmark ID.
	Complete(ctx context.Context, id uuid.UUID, result domain.ItemResult, reason string, bookmarkID *uuid.UUID, at time.Time) error

	// Fail marks a processing item failed with the rejected result and the
	// given reason.
	Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error

	// CountInFlight counts processing items whose processing start time is
	// after staleBefore. Items past the staleness cutoff are presumed
	// orphaned and excluded, so they do not consume admission capacity.
	CountInFlight(ctx context.Context, staleBefore time.Time) (int, error)

	// CountRecentlyFinished counts completed and failed items whose
	// completion time falls after since. Recently finished work still
	// counts as pressure on the downstream pipeline for the remainder of
	// the admission window.
	CountRecentlyFinished(ctx context.Context, since time.Time) (int, error)

	// CountActive counts a session's items in pending or processing status.
	CountActive(ctx context.Context, sessionID uuid.UUID) (int, error)

	// CountPending counts all pending items, for gauges.
	CountPending(ctx context.Context) (int, error)

	// StatsBySession summarizes terminal outcomes for one session.
	StatsBySession(ctx context.Context, sessionID uuid.UUID) (SessionStats, error)

	// WithTx returns a new ItemStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) ItemStore
}
