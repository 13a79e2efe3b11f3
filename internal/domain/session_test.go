package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImportSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	rootList := uuid.New()

	t.Run("valid session", func(t *testing.T) {
		t.Parallel()

		session, err := NewImportSession(userID, "pocket export", &rootList)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, session.ID)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, SessionStatusStaging, session.Status)
		require.NotNil(t, session.RootListID)
		assert.Equal(t, rootList, *session.RootListID)
		assert.False(t, session.CreatedAt.IsZero())
		assert.False(t, session.LastProcessedAt.IsZero())
	})

	t.Run("empty user ID", func(t *testing.T) {
		t.Parallel()

		session, err := NewImportSession(uuid.Nil, "pocket export", nil)
		assert.ErrorIs(t, err, ErrEmptySessionUserID)
		assert.Nil(t, session)
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()

		session, err := NewImportSession(userID, "", nil)
		assert.ErrorIs(t, err, ErrEmptySessionName)
		assert.Nil(t, session)
	})
}

func TestImportSession_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *ImportSession {
		s, err := NewImportSession(uuid.New(), "browser bookmarks", nil)
		require.NoError(t, err)
		return s
	}

	t.Run("invalid status", func(t *testing.T) {
		t.Parallel()

		s := valid()
		s.Status = SessionStatus("archived")
		assert.ErrorIs(t, s.Validate(), ErrInvalidSessionStatus)
	})

	t.Run("missing ID", func(t *testing.T) {
		t.Parallel()

		s := valid()
		s.ID = uuid.Nil
		assert.ErrorIs(t, s.Validate(), ErrEmptySessionID)
	})
}

func TestImportSession_IsActive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status SessionStatus
		active bool
	}{
		{SessionStatusStaging, false},
		{SessionStatusPending, true},
		{SessionStatusRunning, true},
		{SessionStatusPaused, false},
		{SessionStatusCompleted, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.status), func(t *testing.T) {
			t.Parallel()

			s := ImportSession{Status: tc.status}
			assert.Equal(t, tc.active, s.IsActive())
		})
	}
}
