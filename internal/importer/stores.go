package importer

import (
	"context"
	"database/sql"

	"github.com/jdalton/linkhoard/internal/store"
)

// SQLStagingStores implements StagingStores over a shared *sql.DB, using the
// stores' WithTx views for the transactional form.
type SQLStagingStores struct {
	db       *sql.DB
	sessions store.SessionStore
	items    store.ItemStore
}

// NewSQLStagingStores creates a StagingStores bundle over the given database
// handle and store implementations.
func NewSQLStagingStores(db *sql.DB, sessions store.SessionStore, items store.ItemStore) *SQLStagingStores {
	if db == nil {
		panic("db cannot be nil")
	}
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if items == nil {
		panic("items cannot be nil")
	}

	return &SQLStagingStores{
		db:       db,
		sessions: sessions,
		items:    items,
	}
}

// Ensure SQLStagingStores implements StagingStores interface
var _ StagingStores = (*SQLStagingStores)(nil)

// Sessions implements StagingStores.Sessions
func (s *SQLStagingStores) Sessions() store.SessionStore {
	return s.sessions
}

// Items implements StagingStores.Items
func (s *SQLStagingStores) Items() store.ItemStore {
	return s.items
}

// InTransaction implements StagingStores.InTransaction
func (s *SQLStagingStores) InTransaction(
	ctx context.Context,
	fn func(sessions store.SessionStore, items store.ItemStore) error,
) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(s.sessions.WithTx(tx), s.items.WithTx(tx))
	})
}
