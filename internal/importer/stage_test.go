package importer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageImport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stages session with items and releases it", func(t *testing.T) {
		t.Parallel()

		stores := NewMockStagingStore()

		session, err := domain.NewImportSession(uuid.New(), "pocket export", nil)
		require.NoError(t, err)

		var items []*domain.StagedItem
		for i := 0; i < 3; i++ {
			item, err := domain.NewStagedItem(session.ID, domain.ItemTypeLink)
			require.NoError(t, err)
			item.URL = "https://example.com/" + item.ID.String()
			items = append(items, item)
		}

		require.NoError(t, StageImport(ctx, stores, session, items))

		stored := stores.Session(session.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.SessionStatusPending, stored.Status)

		for _, item := range items {
			storedItem := stores.Item(item.ID)
			require.NotNil(t, storedItem)
			assert.Equal(t, domain.ItemStatusPending, storedItem.Status)
		}
	})

	t.Run("rejects nil session", func(t *testing.T) {
		t.Parallel()

		err := StageImport(ctx, NewMockStagingStore(), nil, nil)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("rejects items from another session", func(t *testing.T) {
		t.Parallel()

		stores := NewMockStagingStore()

		session, err := domain.NewImportSession(uuid.New(), "export", nil)
		require.NoError(t, err)

		stray, err := domain.NewStagedItem(uuid.New(), domain.ItemTypeLink)
		require.NoError(t, err)
		stray.URL = "https://example.com/stray"

		err = StageImport(ctx, stores, session, []*domain.StagedItem{stray})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.Nil(t, stores.Session(session.ID))
	})
}
