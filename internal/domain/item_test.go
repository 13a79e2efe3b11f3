package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStagedItem(t *testing.T) {
	t.Parallel()

	t.Run("valid link item", func(t *testing.T) {
		t.Parallel()

		item, err := NewStagedItem(uuid.New(), ItemTypeLink)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, item.ID)
		assert.Equal(t, ItemStatusPending, item.Status)
		assert.Nil(t, item.ProcessingStartedAt)
		assert.Nil(t, item.Result)
		assert.Nil(t, item.CompletedAt)
	})

	t.Run("empty session ID", func(t *testing.T) {
		t.Parallel()

		item, err := NewStagedItem(uuid.Nil, ItemTypeLink)
		assert.ErrorIs(t, err, ErrEmptyItemSessionID)
		assert.Nil(t, item)
	})

	t.Run("invalid type", func(t *testing.T) {
		t.Parallel()

		item, err := NewStagedItem(uuid.New(), ItemType("pdf"))
		assert.ErrorIs(t, err, ErrInvalidItemType)
		assert.Nil(t, item)
	})
}

func TestStagedItem_IsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   ItemStatus
		terminal bool
	}{
		{ItemStatusPending, false},
		{ItemStatusProcessing, false},
		{ItemStatusCompleted, true},
		{ItemStatusFailed, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.status), func(t *testing.T) {
			t.Parallel()

			item := StagedItem{Status: tc.status}
			assert.Equal(t, tc.terminal, item.IsTerminal())
		})
	}
}
