package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/platform/logger"
	"github.com/jdalton/linkhoard/internal/store"
)

// itemColumns is the select list shared by every staged item query.
const itemColumns = `
	id, session_id, status, type, url, content, title, note,
	tags, list_ids, source_added_at, processing_started_at,
	result, result_reason, result_bookmark_id, completed_at,
	created_at, updated_at
`

// PostgresItemStore implements the store.ItemStore interface
// using a PostgreSQL database as the storage backend.
type PostgresItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresItemStore creates a new PostgreSQL implementation of the ItemStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresItemStore(db store.DBTX, logger *slog.Logger) *PostgresItemStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "item_store")),
	}
}

// Ensure PostgresItemStore implements store.ItemStore interface
var _ store.ItemStore = (*PostgresItemStore)(nil)

// CreateBatch implements store.ItemStore.CreateBatch
func (s *PostgresItemStore) CreateBatch(ctx context.Context, items []*domain.StagedItem) error {
	if len(items) == 0 {
		return nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO staged_items
			(id, session_id, status, type, url, content, title, note,
			 tags, list_ids, source_added_at, created_at, updated_at)
		VALUES
	`
	args := make([]any, 0, len(items)*13)
	for i, item := range items {
		if err := item.Validate(); err != nil {
			log.Warn("staged item validation failed during create",
				slog.String("error", err.Error()),
				slog.String("item_id", item.ID.String()))
			return err
		}

		tags, err := json.Marshal(item.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal item tags: %w", err)
		}
		listIDs, err := json.Marshal(item.ListIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal item list IDs: %w", err)
		}

		if i > 0 {
			query += ","
		}
		base := i * 13
		query += fmt.Sprintf(
			" ($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
			base+8, base+9, base+10, base+11, base+12, base+13,
		)
		args = append(args,
			item.ID, item.SessionID, item.Status, item.Type,
			item.URL, item.Content, item.Title, item.Note,
			tags, listIDs, item.SourceAddedAt, item.CreatedAt, item.UpdatedAt,
		)
	}

	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to create staged items",
			slog.String("error", err.Error()),
			slog.Int("item_count", len(items)))
		return MapError(err)
	}

	log.Info("staged items created",
		slog.Int("item_count", len(items)),
		slog.String("session_id", items[0].SessionID.String()))
	return nil
}

// GetByID implements store.ItemStore.GetByID
// Returns store.ErrItemNotFound if the item does not exist.
func (s *PostgresItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM staged_items WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, id)
	item, err := scanItem(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrItemNotFound
		}
		return nil, MapError(err)
	}

	return item, nil
}

// NextBatch implements store.ItemStore.NextBatch
// The join orders pending work by how recently the owning session was
// served. Because last_processed_at advances per item rather than per batch,
// a large import interleaves with small ones instead of starving them.
func (s *PostgresItemStore) NextBatch(ctx context.Context, limit int) ([]*domain.StagedItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT ` + itemPrefixedColumns("i") + `
		FROM staged_items i
		JOIN import_sessions s ON s.id = i.session_id
		WHERE i.status = $1 AND s.status IN ($2, $3)
		ORDER BY s.last_processed_at ASC, i.created_at ASC
		LIMIT $4
	`

	rows, err := s.db.QueryContext(ctx, query,
		domain.ItemStatusPending,
		domain.SessionStatusPending,
		domain.SessionStatusRunning,
		limit,
	)
	if err != nil {
		log.Error("failed to query next batch",
			slog.String("error", err.Error()),
			slog.Int("limit", limit))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var items []*domain.StagedItem
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, MapError(err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return items, nil
}

// MarkProcessing implements store.ItemStore.MarkProcessing
// The pending predicate makes the admission atomic under concurrent
// workers: an item grabbed by another process is simply not transitioned.
func (s *PostgresItemStore) MarkProcessing(ctx context.Context, ids []uuid.UUID, startedAt time.Time) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE staged_items
		SET status = $1, processing_started_at = $2, updated_at = $3
		WHERE id = ANY($4::uuid[]) AND status = $5
		RETURNING id
	`

	rows, err := s.db.QueryContext(ctx, query,
		domain.ItemStatusProcessing,
		startedAt,
		time.Now().UTC(),
		uuidStrings(ids),
		domain.ItemStatusPending,
	)
	if err != nil {
		log.Error("failed to mark items processing",
			slog.String("error", err.Error()),
			slog.Int("item_count", len(ids)))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var marked []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		marked = append(marked, id)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return marked, nil
}

// ResetToPending implements store.ItemStore.ResetToPending
func (s *PostgresItemStore) ResetToPending(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE staged_items
		SET status = $1, processing_started_at = NULL, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.ItemStatusPending,
		time.Now().UTC(),
		id,
		domain.ItemStatusProcessing,
	)
	if err != nil {
		log.Error("failed to reset item to pending",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return MapError(err)
	}

	return nil
}

// ResetStale implements store.ItemStore.ResetStale
func (s *PostgresItemStore) ResetStale(ctx context.Context, before time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE staged_items
		SET status = $1, processing_started_at = NULL, updated_at = $2
		WHERE status = $3 AND processing_started_at < $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.ItemStatusPending,
		time.Now().UTC(),
		domain.ItemStatusProcessing,
		before,
	)
	if err != nil {
		log.Error("failed to reset stale items",
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	if rows > 0 {
		log.Warn("reset stale processing items",
			slog.Int64("count", rows))
	}

	return rows, nil
}

// Complete implements store.ItemStore.Complete
func (s *PostgresItemStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	result domain.ItemResult,
	reason string,
	bookmarkID *uuid.UUID,
	at time.Time,
) error {
	return s.finish(ctx, id, domain.ItemStatusCompleted, result, reason, bookmarkID, at)
}

// Fail implements store.ItemStore.Fail
func (s *PostgresItemStore) Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return s.finish(ctx, id, domain.ItemStatusFailed, domain.ResultRejected, reason, nil, at)
}

// finish moves a processing item to a terminal status, clearing the
// processing start marker and recording the outcome.
func (s *PostgresItemStore) finish(
	ctx context.Context,
	id uuid.UUID,
	status domain.ItemStatus,
	result domain.ItemResult,
	reason string,
	bookmarkID *uuid.UUID,
	at time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE staged_items
		SET status = $1, result = $2, result_reason = $3, result_bookmark_id = $4,
			completed_at = $5, processing_started_at = NULL, updated_at = $6
		WHERE id = $7 AND status = $8
	`

	res, err := s.db.ExecContext(ctx, query,
		status,
		result,
		reason,
		bookmarkID,
		at,
		time.Now().UTC(),
		id,
		domain.ItemStatusProcessing,
	)
	if err != nil {
		log.Error("failed to finish staged item",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		// The item was reclaimed or paused away from under us; the retry
		// will record a fresh outcome.
		return fmt.Errorf("%w: item %s is no longer processing", store.ErrUpdateFailed, id)
	}

	return nil
}

// CountInFlight implements store.ItemStore.CountInFlight
func (s *PostgresItemStore) CountInFlight(ctx context.Context, staleBefore time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM staged_items
		WHERE status = $1 AND processing_started_at > $2
	`
	return s.countQuery(ctx, query, domain.ItemStatusProcessing, staleBefore)
}

// CountRecentlyFinished implements store.ItemStore.CountRecentlyFinished
func (s *PostgresItemStore) CountRecentlyFinished(ctx context.Context, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM staged_items
		WHERE status IN ($1, $2) AND completed_at > $3
	`
	return s.countQuery(ctx, query, domain.ItemStatusCompleted, domain.ItemStatusFailed, since)
}

// CountActive implements store.ItemStore.CountActive
func (s *PostgresItemStore) CountActive(ctx context.Context, sessionID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM staged_items
		WHERE session_id = $1 AND status IN ($2, $3)
	`
	return s.countQuery(ctx, query, sessionID, domain.ItemStatusPending, domain.ItemStatusProcessing)
}

// CountPending implements store.ItemStore.CountPending
func (s *PostgresItemStore) CountPending(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM staged_items
		WHERE status = $1
	`
	return s.countQuery(ctx, query, domain.ItemStatusPending)
}

// StatsBySession implements store.ItemStore.StatsBySession
func (s *PostgresItemStore) StatsBySession(ctx context.Context, sessionID uuid.UUID) (store.SessionStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE result = $2),
			COUNT(*) FILTER (WHERE result = $3),
			COUNT(*) FILTER (WHERE status = $4)
		FROM staged_items
		WHERE session_id = $1
	`

	var stats store.SessionStats
	err := s.db.QueryRowContext(ctx, query,
		sessionID,
		domain.ResultAccepted,
		domain.ResultSkippedDuplicate,
		domain.ItemStatusFailed,
	).Scan(&stats.Total, &stats.Accepted, &stats.Duplicates, &stats.Failed)
	if err != nil {
		log.Error("failed to collect session stats",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return store.SessionStats{}, MapError(err)
	}

	return stats, nil
}

// WithTx implements store.ItemStore.WithTx
func (s *PostgresItemStore) WithTx(tx *sql.Tx) store.ItemStore {
	return &PostgresItemStore{
		db:     tx,
		logger: s.logger,
	}
}

func (s *PostgresItemStore) countQuery(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// scanItem maps one staged item row using the itemColumns select list.
func scanItem(scan func(dest ...any) error) (*domain.StagedItem, error) {
	var item domain.StagedItem
	var url, content, title, note, resultReason sql.NullString
	var tags, listIDs []byte
	var sourceAddedAt, processingStartedAt, completedAt sql.NullTime
	var result sql.NullString
	var resultBookmarkID uuid.NullUUID

	err := scan(
		&item.ID,
		&item.SessionID,
		&item.Status,
		&item.Type,
		&url,
		&content,
		&title,
		&note,
		&tags,
		&listIDs,
		&sourceAddedAt,
		&processingStartedAt,
		&result,
		&resultReason,
		&resultBookmarkID,
		&completedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.URL = url.String
	item.Content = content.String
	item.Title = title.String
	item.Note = note.String
	item.ResultReason = resultReason.String

	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &item.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item tags: %w", err)
		}
	}
	if len(listIDs) > 0 {
		if err := json.Unmarshal(listIDs, &item.ListIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item list IDs: %w", err)
		}
	}

	if sourceAddedAt.Valid {
		item.SourceAddedAt = &sourceAddedAt.Time
	}
	if processingStartedAt.Valid {
		item.ProcessingStartedAt = &processingStartedAt.Time
	}
	if result.Valid {
		r := domain.ItemResult(result.String)
		item.Result = &r
	}
	if resultBookmarkID.Valid {
		item.ResultBookmarkID = &resultBookmarkID.UUID
	}
	if completedAt.Valid {
		item.CompletedAt = &completedAt.Time
	}

	return &item, nil
}

// itemPrefixedColumns qualifies the shared select list with a table alias
// for queries that join staged_items against import_sessions.
func itemPrefixedColumns(alias string) string {
	return alias + `.id, ` + alias + `.session_id, ` + alias + `.status, ` + alias + `.type, ` +
		alias + `.url, ` + alias + `.content, ` + alias + `.title, ` + alias + `.note, ` +
		alias + `.tags, ` + alias + `.list_ids, ` + alias + `.source_added_at, ` +
		alias + `.processing_started_at, ` + alias + `.result, ` + alias + `.result_reason, ` +
		alias + `.result_bookmark_id, ` + alias + `.completed_at, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
