package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ItemStatus represents the processing state of a staged item.
type ItemStatus string

// Possible item status values
const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

// ItemType discriminates the payload of a staged item.
type ItemType string

// Possible item types
const (
	ItemTypeLink  ItemType = "link"
	ItemTypeText  ItemType = "text"
	ItemTypeAsset ItemType = "asset"
)

// ItemResult records the terminal outcome of processing an item.
type ItemResult string

// Possible item results
const (
	ResultAccepted         ItemResult = "accepted"
	ResultSkippedDuplicate ItemResult = "skipped_duplicate"
	ResultRejected         ItemResult = "rejected"
)

// Common validation errors for StagedItem
var (
	ErrEmptyItemID        = errors.New("item ID cannot be empty")
	ErrEmptyItemSessionID = errors.New("item session ID cannot be empty")
	ErrInvalidItemStatus  = errors.New("invalid item status")
	ErrInvalidItemType    = errors.New("invalid item type")
)

// StagedItem is one bookmark-to-be-created sitting in the import backlog.
// Payload fields are populated according to Type: link items carry a URL,
// text items carry Content, asset items are currently rejected by the
// processor. ProcessingStartedAt is set exactly while the item is in the
// processing status; Result, ResultReason and CompletedAt are set exactly
// when it reaches a terminal status.
type StagedItem struct {
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	Status    ItemStatus `json:"status"`
	Type      ItemType   `json:"type"`

	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
	Note    string `json:"note,omitempty"`

	// Tags are attached to the created bookmark in order.
	Tags []string `json:"tags,omitempty"`

	// ListIDs are collections the created bookmark is attached to, in
	// addition to the session's root list.
	ListIDs []uuid.UUID `json:"list_ids,omitempty"`

	// SourceAddedAt is when the bookmark was created in the system the
	// import came from, forwarded to the downstream creation call.
	SourceAddedAt *time.Time `json:"source_added_at,omitempty"`

	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`

	Result           *ItemResult `json:"result,omitempty"`
	ResultReason     string      `json:"result_reason,omitempty"`
	ResultBookmarkID *uuid.UUID  `json:"result_bookmark_id,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStagedItem creates a new pending StagedItem for the given session.
// Payload fields are filled in by the caller before staging.
func NewStagedItem(sessionID uuid.UUID, itemType ItemType) (*StagedItem, error) {
	now := time.Now().UTC()
	item := &StagedItem{
		ID:        uuid.New(),
		SessionID: sessionID,
		Status:    ItemStatusPending,
		Type:      itemType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the StagedItem has valid data.
// Returns an error if any field fails validation.
func (i *StagedItem) Validate() error {
	if i.ID == uuid.Nil {
		return ErrEmptyItemID
	}

	if i.SessionID == uuid.Nil {
		return ErrEmptyItemSessionID
	}

	if !isValidItemStatus(i.Status) {
		return ErrInvalidItemStatus
	}

	if !isValidItemType(i.Type) {
		return ErrInvalidItemType
	}

	return nil
}

// IsTerminal reports whether the item has reached a final state.
func (i *StagedItem) IsTerminal() bool {
	return i.Status == ItemStatusCompleted || i.Status == ItemStatusFailed
}

func isValidItemStatus(status ItemStatus) bool {
	switch status {
	case ItemStatusPending, ItemStatusProcessing, ItemStatusCompleted, ItemStatusFailed:
		return true
	default:
		return false
	}
}

func isValidItemType(itemType ItemType) bool {
	switch itemType {
	case ItemTypeLink, ItemTypeText, ItemTypeAsset:
		return true
	default:
		return false
	}
}
