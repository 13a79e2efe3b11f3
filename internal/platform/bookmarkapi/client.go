// Package bookmarkapi is the HTTP client for the application API the worker
// creates bookmarks through. It implements the importer's downstream
// collaborator interfaces (bookmark creation, tag attachment, list
// attachment) over the API's JSON endpoints.
package bookmarkapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/config"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/importer"
)

const defaultRequestTimeout = 30 * time.Second

// Client talks to the application API with a service token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client from the API configuration.
// If logger is nil, a default logger will be used.
func NewClient(cfg config.APIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		logger: logger.With(slog.String("component", "bookmark_api")),
	}
}

// Ensure Client implements the importer collaborator interfaces
var (
	_ importer.BookmarkCreator = (*Client)(nil)
	_ importer.TagAttacher     = (*Client)(nil)
	_ importer.ListAttacher    = (*Client)(nil)
)

type createBookmarkBody struct {
	Type      string     `json:"type"`
	URL       string     `json:"url,omitempty"`
	Text      string     `json:"text,omitempty"`
	Title     string     `json:"title,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type createBookmarkResponse struct {
	ID            uuid.UUID `json:"id"`
	AlreadyExists bool      `json:"alreadyExists"`
}

// CreateBookmark implements importer.BookmarkCreator.CreateBookmark
func (c *Client) CreateBookmark(ctx context.Context, req importer.CreateBookmarkRequest) (importer.CreateBookmarkResult, error) {
	body := createBookmarkBody{
		Type:      string(req.Type),
		Title:     req.Title,
		Note:      req.Note,
		CreatedAt: req.CreatedAt,
	}
	switch req.Type {
	case domain.ItemTypeLink:
		body.URL = req.URL
	case domain.ItemTypeText:
		body.Text = req.Text
	default:
		return importer.CreateBookmarkResult{}, fmt.Errorf("unsupported bookmark type %q", req.Type)
	}

	var resp createBookmarkResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/bookmarks", body, &resp); err != nil {
		return importer.CreateBookmarkResult{}, err
	}

	return importer.CreateBookmarkResult{ID: resp.ID, AlreadyExists: resp.AlreadyExists}, nil
}

// AttachTags implements importer.TagAttacher.AttachTags
func (c *Client) AttachTags(ctx context.Context, bookmarkID uuid.UUID, names []string) error {
	type attach struct {
		Name string `json:"tagName"`
	}
	body := struct {
		Attach []attach `json:"attach"`
	}{}
	for _, name := range names {
		body.Attach = append(body.Attach, attach{Name: name})
	}

	path := fmt.Sprintf("/api/v1/bookmarks/%s/tags", bookmarkID)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// AddToList implements importer.ListAttacher.AddToList
// The API answers a conflict for a bookmark already in the list; that is
// treated as success to keep the call idempotent for retried items.
func (c *Client) AddToList(ctx context.Context, listID, bookmarkID uuid.UUID) error {
	path := fmt.Sprintf("/api/v1/lists/%s/bookmarks/%s", listID, bookmarkID)
	err := c.do(ctx, http.MethodPut, path, nil, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return nil
	}
	return err
}

// APIError is a non-2xx response from the application API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(payload)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	return nil
}
