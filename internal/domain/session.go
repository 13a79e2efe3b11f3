package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of an import session.
type SessionStatus string

// Possible session status values
const (
	// SessionStatusStaging means the session's items are still being loaded
	// and the scheduler must not draw from it yet.
	SessionStatusStaging SessionStatus = "staging"

	// SessionStatusPending means the session is staged and waiting for its
	// first batch to be admitted.
	SessionStatusPending SessionStatus = "pending"

	// SessionStatusRunning means at least one batch has been drawn from the
	// session.
	SessionStatusRunning SessionStatus = "running"

	// SessionStatusPaused means the user suspended the session; in-flight
	// items drain back to pending and no new batches are drawn.
	SessionStatusPaused SessionStatus = "paused"

	// SessionStatusCompleted means the session has no pending or processing
	// items left.
	SessionStatusCompleted SessionStatus = "completed"
)

// Common validation errors for ImportSession
var (
	ErrEmptySessionID       = errors.New("session ID cannot be empty")
	ErrEmptySessionUserID   = errors.New("session user ID cannot be empty")
	ErrEmptySessionName     = errors.New("session name cannot be empty")
	ErrInvalidSessionStatus = errors.New("invalid session status")
)

// ImportSession represents one bulk import started by a user. It groups the
// staged items and carries the scheduling state the fair batch selector
// orders by: LastProcessedAt is advanced every time one of the session's
// items reaches a terminal state, so sessions served least recently sort
// first.
type ImportSession struct {
	ID     uuid.UUID     `json:"id"`
	UserID uuid.UUID     `json:"user_id"`
	Name   string        `json:"name"`
	Status SessionStatus `json:"status"`

	// RootListID, when set, is a collection every successfully imported
	// bookmark of this session is attached to.
	RootListID *uuid.UUID `json:"root_list_id,omitempty"`

	LastProcessedAt time.Time `json:"last_processed_at"`
	Message         string    `json:"message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewImportSession creates a new ImportSession owned by the given user.
// The session starts in the staging status; Stage flips it to pending once
// its items are persisted. Returns an error if validation fails.
func NewImportSession(userID uuid.UUID, name string, rootListID *uuid.UUID) (*ImportSession, error) {
	now := time.Now().UTC()
	session := &ImportSession{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		Status:          SessionStatusStaging,
		RootListID:      rootListID,
		LastProcessedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks if the ImportSession has valid data.
// Returns an error if any field fails validation.
func (s *ImportSession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySessionID
	}

	if s.UserID == uuid.Nil {
		return ErrEmptySessionUserID
	}

	if s.Name == "" {
		return ErrEmptySessionName
	}

	if !isValidSessionStatus(s.Status) {
		return ErrInvalidSessionStatus
	}

	return nil
}

// IsActive reports whether the scheduler may draw batches from the session.
func (s *ImportSession) IsActive() bool {
	return s.Status == SessionStatusPending || s.Status == SessionStatusRunning
}

// isValidSessionStatus checks if the provided status is one of the defined constants.
func isValidSessionStatus(status SessionStatus) bool {
	switch status {
	case SessionStatusStaging,
		SessionStatusPending,
		SessionStatusRunning,
		SessionStatusPaused,
		SessionStatusCompleted:
		return true
	default:
		return false
	}
}
