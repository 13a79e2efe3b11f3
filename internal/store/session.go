package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
)

// SessionStore defines the interface for import session persistence.
// All status transitions are conditional on the current status so that
// concurrent worker processes coordinate through the store's row-level
// atomicity rather than any in-process lock.
// Version: 1.0
type SessionStore interface {
	// Create saves a new import session to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, session *domain.ImportSession) error

	// GetByID retrieves a session by its unique ID.
	// Returns ErrSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ImportSession, error)

	// SetStatus unconditionally moves a session to the given status.
	// Returns ErrSessionNotFound if the session does not exist.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error

	// MarkRunning transitions the given sessions from pending to running.
	// Sessions not currently pending are left untouched, so a concurrent
	// update can never downgrade a running session.
	MarkRunning(ctx context.Context, ids []uuid.UUID) error

	// CompleteIfDrained marks the session completed if and only if it is
	// currently active and has zero items in pending or processing status,
	// recording the given status message. The check and the transition
	// happen in a single atomic statement. Returns true if the session was
	// completed by this call.
	CompleteIfDrained(ctx context.Context, id uuid.UUID, message string) (bool, error)

	// TouchLastProcessed advances the session's last-processed timestamp,
	// which feeds the least-recently-served ordering of the batch selector.
	TouchLastProcessed(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListActiveIDs returns the IDs of all sessions in pending or running
	// status.
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)

	// CountByStatus returns the number of sessions per status, for gauges.
	CountByStatus(ctx context.Context) (map[domain.SessionStatus]int, error)

	// WithTx returns a new SessionStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) SessionStore
}
