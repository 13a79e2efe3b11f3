package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/store"
)

// Lifecycle keeps session status consistent with backlog state. A session is
// completed exactly when it has zero pending or processing items; that
// condition is always evaluated inside the store's conditional update, never
// from cached counts, so the processor needs no explicit "finish" signal.
type Lifecycle struct {
	sessions store.SessionStore
	items    store.ItemStore
	logger   *slog.Logger
}

// NewLifecycle creates a Lifecycle manager over the given stores.
func NewLifecycle(sessions store.SessionStore, items store.ItemStore, logger *slog.Logger) *Lifecycle {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if items == nil {
		panic("items cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Lifecycle{
		sessions: sessions,
		items:    items,
		logger:   logger.With(slog.String("component", "lifecycle")),
	}
}

// CompleteDrainedSessions attempts completion for each of the given
// sessions. Sessions that still have pending or processing items are left
// untouched by the store's conditional update.
func (l *Lifecycle) CompleteDrainedSessions(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if err := l.completeIfDrained(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CompleteIdleSessions re-checks every active session for completion. The
// driver calls this when a poll finds nothing to process, covering the case
// where a session's last item completed in a batch whose completion check
// raced with it and no further batch would trigger a re-check.
func (l *Lifecycle) CompleteIdleSessions(ctx context.Context) error {
	ids, err := l.sessions.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}

	return l.CompleteDrainedSessions(ctx, ids)
}

func (l *Lifecycle) completeIfDrained(ctx context.Context, id uuid.UUID) error {
	// Stats are collected first so the completion message reflects final
	// outcomes. The conditional update still re-checks the backlog, so a
	// race here only means the message is computed again on a later pass.
	stats, err := l.items.StatsBySession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to collect stats for session %s: %w", id, err)
	}

	message := fmt.Sprintf("imported %d bookmarks, %d duplicates, %d failed",
		stats.Accepted, stats.Duplicates, stats.Failed)

	completed, err := l.sessions.CompleteIfDrained(ctx, id, message)
	if err != nil {
		return fmt.Errorf("failed to complete session %s: %w", id, err)
	}

	if completed {
		l.logger.Info("session backlog drained",
			slog.String("session_id", id.String()),
			slog.Int("accepted", stats.Accepted),
			slog.Int("duplicates", stats.Duplicates),
			slog.Int("failed", stats.Failed))
	} else if l.logger.Enabled(ctx, slog.LevelDebug) {
		remaining, err := l.items.CountActive(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count active items for session %s: %w", id, err)
		}
		l.logger.Debug("session not drained yet",
			slog.String("session_id", id.String()),
			slog.Int("remaining", remaining))
	}

	return nil
}
