package importer

import (
	"context"
	"fmt"

	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/store"
)

// StageImport persists a new import session together with all of its staged
// items and releases it to the scheduler, in one transaction. The session is
// written in the staging status and flipped to pending only after every item
// is persisted, so a half-staged session can never be drawn from.
func StageImport(
	ctx context.Context,
	stores StagingStores,
	session *domain.ImportSession,
	items []*domain.StagedItem,
) error {
	if session == nil {
		return fmt.Errorf("%w: session is nil", store.ErrInvalidEntity)
	}

	for _, item := range items {
		if item.SessionID != session.ID {
			return fmt.Errorf("%w: item %s does not belong to session %s",
				store.ErrInvalidEntity, item.ID, session.ID)
		}
	}

	return stores.InTransaction(ctx, func(sessions store.SessionStore, itemStore store.ItemStore) error {
		if err := sessions.Create(ctx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		if err := itemStore.CreateBatch(ctx, items); err != nil {
			return fmt.Errorf("failed to stage items: %w", err)
		}

		if err := sessions.SetStatus(ctx, session.ID, domain.SessionStatusPending); err != nil {
			return fmt.Errorf("failed to release session: %w", err)
		}

		return nil
	})
}
