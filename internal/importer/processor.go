package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/store"
)

// Terminal rejection reasons recorded on items. These are user-visible via
// the item's result_reason, so they read as messages rather than Go errors.
var (
	errLinkURLRequired     = errors.New("URL is required for link bookmarks")
	errTextContentRequired = errors.New("Text content is required for text bookmarks")
	errAssetNotSupported   = errors.New("Asset bookmarks not yet supported")
)

// Processor executes one staged item end-to-end against the downstream
// bookmark pipeline and records the outcome. It is safe to run the same item
// again after a stale reclaim: the creation call is idempotent and terminal
// recording is conditional on the item still being in processing.
type Processor struct {
	sessions  store.SessionStore
	items     store.ItemStore
	bookmarks BookmarkCreator
	tags      TagAttacher
	lists     ListAttacher
	metrics   Metrics
	logger    *slog.Logger
}

// NewProcessor creates a Processor. All collaborators are required except
// metrics and logger, which default to no-op and slog.Default.
func NewProcessor(
	sessions store.SessionStore,
	items store.ItemStore,
	bookmarks BookmarkCreator,
	tags TagAttacher,
	lists ListAttacher,
	metrics Metrics,
	logger *slog.Logger,
) *Processor {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if items == nil {
		panic("items cannot be nil")
	}
	if bookmarks == nil {
		panic("bookmarks cannot be nil")
	}
	if tags == nil {
		panic("tags cannot be nil")
	}
	if lists == nil {
		panic("lists cannot be nil")
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		sessions:  sessions,
		items:     items,
		bookmarks: bookmarks,
		tags:      tags,
		lists:     lists,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "processor")),
	}
}

// Process runs one staged item to a terminal state, or returns it to the
// queue if its session was paused after admission. The returned error
// reports store-level failures only; validation and downstream failures are
// recorded on the item as a rejected outcome, not returned.
func (p *Processor) Process(ctx context.Context, item *domain.StagedItem) error {
	log := p.logger.With(
		slog.String("item_id", item.ID.String()),
		slog.String("session_id", item.SessionID.String()),
		slog.String("item_type", string(item.Type)),
	)

	// Re-fetch the session: a pause that landed after this item was marked
	// processing drains it back to pending instead of force-cancelling.
	session, err := p.sessions.GetByID(ctx, item.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session for item %s: %w", item.ID, err)
	}

	if session.Status == domain.SessionStatusPaused {
		log.Info("session paused, returning item to queue")
		if err := p.items.ResetToPending(ctx, item.ID); err != nil {
			return fmt.Errorf("failed to return item %s to queue: %w", item.ID, err)
		}
		return nil
	}

	req, buildErr := buildCreateRequest(item)
	if buildErr != nil {
		log.Info("rejecting staged item", slog.String("reason", buildErr.Error()))
		return p.reject(ctx, session, item, buildErr.Error())
	}

	result, err := p.bookmarks.CreateBookmark(ctx, req)
	if err != nil {
		log.Warn("downstream bookmark creation failed", slog.String("error", err.Error()))
		return p.reject(ctx, session, item, err.Error())
	}

	// Tags are attached for duplicates too: re-importing an existing URL
	// should still merge the import's tags onto it.
	if len(item.Tags) > 0 {
		if err := p.tags.AttachTags(ctx, result.ID, item.Tags); err != nil {
			log.Warn("tag attachment failed", slog.String("error", err.Error()))
			return p.reject(ctx, session, item, err.Error())
		}
	}

	outcome := domain.ResultAccepted
	reason := ""
	if result.AlreadyExists {
		outcome = domain.ResultSkippedDuplicate
		reason = "URL already exists"
	}

	now := time.Now().UTC()
	if err := p.items.Complete(ctx, item.ID, outcome, reason, &result.ID, now); err != nil {
		return fmt.Errorf("failed to record outcome for item %s: %w", item.ID, err)
	}

	p.attachToLists(ctx, log, session, item, result.ID)

	p.metrics.RecordProcessed(string(outcome))
	log.Debug("staged item processed", slog.String("result", string(outcome)))

	return p.touchSession(ctx, session.ID)
}

// reject marks the item failed with the given reason. Rejections still
// advance the session's last-processed timestamp so an import full of bad
// rows cannot stall the session's fairness ordering.
func (p *Processor) reject(ctx context.Context, session *domain.ImportSession, item *domain.StagedItem, reason string) error {
	if err := p.items.Fail(ctx, item.ID, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record rejection for item %s: %w", item.ID, err)
	}

	p.metrics.RecordProcessed(string(domain.ResultRejected))

	return p.touchSession(ctx, session.ID)
}

// attachToLists attaches the created bookmark to the session's root list and
// the item's own target lists, deduplicated. Each attachment failure is
// logged and swallowed individually: one bad list must not fail the item or
// block the remaining lists.
func (p *Processor) attachToLists(
	ctx context.Context,
	log *slog.Logger,
	session *domain.ImportSession,
	item *domain.StagedItem,
	bookmarkID uuid.UUID,
) {
	targets := make(map[uuid.UUID]struct{}, len(item.ListIDs)+1)
	if session.RootListID != nil {
		targets[*session.RootListID] = struct{}{}
	}
	for _, listID := range item.ListIDs {
		targets[listID] = struct{}{}
	}

	for listID := range targets {
		if err := p.lists.AddToList(ctx, listID, bookmarkID); err != nil {
			log.Warn("failed to attach bookmark to list",
				slog.String("list_id", listID.String()),
				slog.String("bookmark_id", bookmarkID.String()),
				slog.String("error", err.Error()))
		}
	}
}

func (p *Processor) touchSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := p.sessions.TouchLastProcessed(ctx, sessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to advance session %s: %w", sessionID, err)
	}
	return nil
}

// buildCreateRequest validates the item's payload for its type and builds
// the downstream creation request. It is a pure function: the type dispatch
// and its validation rules live here and nowhere else.
func buildCreateRequest(item *domain.StagedItem) (CreateBookmarkRequest, error) {
	switch item.Type {
	case domain.ItemTypeLink:
		if item.URL == "" {
			return CreateBookmarkRequest{}, errLinkURLRequired
		}
		return CreateBookmarkRequest{
			Type:      domain.ItemTypeLink,
			URL:       item.URL,
			Title:     item.Title,
			Note:      item.Note,
			CreatedAt: item.SourceAddedAt,
		}, nil

	case domain.ItemTypeText:
		if item.Content == "" {
			return CreateBookmarkRequest{}, errTextContentRequired
		}
		return CreateBookmarkRequest{
			Type:      domain.ItemTypeText,
			Text:      item.Content,
			Title:     item.Title,
			Note:      item.Note,
			CreatedAt: item.SourceAddedAt,
		}, nil

	case domain.ItemTypeAsset:
		return CreateBookmarkRequest{}, errAssetNotSupported

	default:
		return CreateBookmarkRequest{}, fmt.Errorf("unknown staged item type %q", item.Type)
	}
}
