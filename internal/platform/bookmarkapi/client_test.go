package bookmarkapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jdalton/linkhoard/internal/config"
	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/jdalton/linkhoard/internal/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.APIConfig{BaseURL: server.URL, Token: "service-token"}, nil)
}

func TestCreateBookmark(t *testing.T) {
	t.Parallel()

	bookmarkID := uuid.New()

	t.Run("creates link bookmark", func(t *testing.T) {
		t.Parallel()

		var gotAuth string
		var gotBody map[string]any
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/v1/bookmarks", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"id": bookmarkID, "alreadyExists": false})
		}))

		result, err := client.CreateBookmark(context.Background(), importer.CreateBookmarkRequest{
			Type:  domain.ItemTypeLink,
			URL:   "https://example.com/article",
			Title: "An article",
		})
		require.NoError(t, err)

		assert.Equal(t, bookmarkID, result.ID)
		assert.False(t, result.AlreadyExists)
		assert.Equal(t, "Bearer service-token", gotAuth)
		assert.Equal(t, "link", gotBody["type"])
		assert.Equal(t, "https://example.com/article", gotBody["url"])
		assert.Equal(t, "An article", gotBody["title"])
	})

	t.Run("reports duplicates", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": bookmarkID, "alreadyExists": true})
		}))

		result, err := client.CreateBookmark(context.Background(), importer.CreateBookmarkRequest{
			Type: domain.ItemTypeLink,
			URL:  "https://example.com/seen",
		})
		require.NoError(t, err)
		assert.True(t, result.AlreadyExists)
	})

	t.Run("surfaces API errors", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid payload", http.StatusBadRequest)
		}))

		_, err := client.CreateBookmark(context.Background(), importer.CreateBookmarkRequest{
			Type: domain.ItemTypeLink,
			URL:  "https://example.com/bad",
		})
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})

	t.Run("rejects asset type locally", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		}))

		_, err := client.CreateBookmark(context.Background(), importer.CreateBookmarkRequest{
			Type: domain.ItemTypeAsset,
		})
		assert.Error(t, err)
	})
}

func TestAttachTags(t *testing.T) {
	t.Parallel()

	bookmarkID := uuid.New()

	var gotPath string
	var gotBody map[string][]map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.AttachTags(context.Background(), bookmarkID, []string{"tech", "reading"}))

	assert.Equal(t, "/api/v1/bookmarks/"+bookmarkID.String()+"/tags", gotPath)
	require.Len(t, gotBody["attach"], 2)
	assert.Equal(t, "tech", gotBody["attach"][0]["tagName"])
}

func TestAddToList(t *testing.T) {
	t.Parallel()

	listID := uuid.New()
	bookmarkID := uuid.New()

	t.Run("adds bookmark to list", func(t *testing.T) {
		t.Parallel()

		var gotPath, gotMethod string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotMethod = r.Method
			w.WriteHeader(http.StatusOK)
		}))

		require.NoError(t, client.AddToList(context.Background(), listID, bookmarkID))
		assert.Equal(t, http.MethodPut, gotMethod)
		assert.Equal(t, "/api/v1/lists/"+listID.String()+"/bookmarks/"+bookmarkID.String(), gotPath)
	})

	t.Run("conflict means already in list", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "already in list", http.StatusConflict)
		}))

		assert.NoError(t, client.AddToList(context.Background(), listID, bookmarkID))
	})

	t.Run("other errors propagate", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "missing", http.StatusNotFound)
		}))

		assert.Error(t, client.AddToList(context.Background(), listID, bookmarkID))
	})
}
