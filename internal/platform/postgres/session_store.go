package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/platform/logger"
	"github.com/jdalton/linkhoard/internal/store"
)

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the SessionStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Ensure PostgresSessionStore implements store.SessionStore interface
var _ store.SessionStore = (*PostgresSessionStore)(nil)

// Create implements store.SessionStore.Create
// It saves a new import session to the database, handling domain validation.
func (s *PostgresSessionStore) Create(ctx context.Context, session *domain.ImportSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during create",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	query := `
		INSERT INTO import_sessions
			(id, user_id, name, status, root_list_id, last_processed_at, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.UserID,
		session.Name,
		session.Status,
		session.RootListID,
		session.LastProcessedAt,
		session.Message,
		session.CreatedAt,
		session.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create import session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return MapError(err)
	}

	log.Info("import session created",
		slog.String("session_id", session.ID.String()),
		slog.String("user_id", session.UserID.String()))
	return nil
}

// GetByID implements store.SessionStore.GetByID
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *PostgresSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ImportSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, name, status, root_list_id, last_processed_at, message, created_at, updated_at
		FROM import_sessions
		WHERE id = $1
	`

	var session domain.ImportSession
	var rootListID uuid.NullUUID
	var message sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Name,
		&session.Status,
		&rootListID,
		&session.LastProcessedAt,
		&message,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get import session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}

	if rootListID.Valid {
		session.RootListID = &rootListID.UUID
	}
	session.Message = message.String

	return &session, nil
}

// SetStatus implements store.SessionStore.SetStatus
func (s *PostgresSessionStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE import_sessions
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to set session status",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// MarkRunning implements store.SessionStore.MarkRunning
// The status predicate ensures a session already running (or paused or
// completed by a concurrent update) is never transitioned here.
func (s *PostgresSessionStore) MarkRunning(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE import_sessions
		SET status = $1, updated_at = $2
		WHERE id = ANY($3::uuid[]) AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.SessionStatusRunning,
		time.Now().UTC(),
		uuidStrings(ids),
		domain.SessionStatusPending,
	)
	if err != nil {
		log.Error("failed to mark sessions running",
			slog.String("error", err.Error()),
			slog.Int("session_count", len(ids)))
		return MapError(err)
	}

	return nil
}

// CompleteIfDrained implements store.SessionStore.CompleteIfDrained
// The NOT EXISTS subquery and the status update run in one statement, so the
// "zero pending or processing items" check can never act on cached state.
func (s *PostgresSessionStore) CompleteIfDrained(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE import_sessions
		SET status = $1, message = $2, updated_at = $3
		WHERE id = $4
		  AND status IN ($5, $6)
		  AND NOT EXISTS (
			SELECT 1 FROM staged_items
			WHERE session_id = $4 AND status IN ($7, $8)
		  )
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.SessionStatusCompleted,
		message,
		time.Now().UTC(),
		id,
		domain.SessionStatusPending,
		domain.SessionStatusRunning,
		domain.ItemStatusPending,
		domain.ItemStatusProcessing,
	)
	if err != nil {
		log.Error("failed to complete drained session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return false, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, MapError(err)
	}

	if rows > 0 {
		log.Info("import session completed",
			slog.String("session_id", id.String()))
	}

	return rows > 0, nil
}

// TouchLastProcessed implements store.SessionStore.TouchLastProcessed
func (s *PostgresSessionStore) TouchLastProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE import_sessions
		SET last_processed_at = $1, updated_at = $2
		WHERE id = $3
	`

	_, err := s.db.ExecContext(ctx, query, at, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to touch session last_processed_at",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return MapError(err)
	}

	return nil
}

// ListActiveIDs implements store.SessionStore.ListActiveIDs
func (s *PostgresSessionStore) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id
		FROM import_sessions
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query,
		domain.SessionStatusPending,
		domain.SessionStatusRunning,
	)
	if err != nil {
		log.Error("failed to list active sessions",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return ids, nil
}

// CountByStatus implements store.SessionStore.CountByStatus
func (s *PostgresSessionStore) CountByStatus(ctx context.Context) (map[domain.SessionStatus]int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT status, COUNT(*)
		FROM import_sessions
		GROUP BY status
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to count sessions by status",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.SessionStatus]int)
	for rows.Next() {
		var status domain.SessionStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, MapError(err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// WithTx implements store.SessionStore.WithTx
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return &PostgresSessionStore{
		db:     tx,
		logger: s.logger,
	}
}
