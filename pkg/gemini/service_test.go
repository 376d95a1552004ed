package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/menta2k/vision-query/pkg/vlm"
)

// restGemini serves the two generativelanguage REST calls a query makes.
// The model list is split over two pages.
type restGemini struct {
	*httptest.Server

	mu        sync.Mutex
	listCalls int
	genPath   string
	genBody   string
	keys      []string
}

func newRESTGemini(t *testing.T) *restGemini {
	t.Helper()
	f := &restGemini{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *restGemini) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.Header.Get("x-goog-api-key")
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	f.keys = append(f.keys, key)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/models"):
		f.listCalls++
		if r.URL.Query().Get("pageToken") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"models":        []map[string]any{{"name": "models/m1"}},
				"nextPageToken": "page-2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": "models/m2"}},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":generateContent"):
		body, _ := io.ReadAll(r.Body)
		f.genPath = r.URL.Path
		f.genBody = string(body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": "hello"}},
				},
			}},
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *restGemini) generated() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genPath, f.genBody
}

func TestSDKListModelsPages(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "g-key")
	srv := newRESTGemini(t)

	c := NewClient(WithClientOptions(option.WithEndpoint(srv.URL)))
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"models/m1", "models/m2"}, models)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 2, srv.listCalls)
	for _, k := range srv.keys {
		assert.Equal(t, "g-key", k)
	}
}

func TestSDKQuery(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "g-key")
	srv := newRESTGemini(t)

	text, err := Query(context.Background(), testImage(), "hi", "models/m2",
		WithClientOptions(option.WithEndpoint(srv.URL)))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	path, body := srv.generated()
	assert.True(t, strings.HasSuffix(path, "/models/m2:generateContent"), path)

	var req struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	require.Len(t, req.Contents, 1)
	parts := req.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "hi", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	assert.NotEmpty(t, parts[1].InlineData.Data)
}

func TestSDKQueryUnsupportedModel(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "g-key")
	srv := newRESTGemini(t)

	_, err := Query(context.Background(), testImage(), "hi", "models/m3",
		WithClientOptions(option.WithEndpoint(srv.URL)))
	require.Error(t, err)
	assert.ErrorIs(t, err, vlm.ErrUnsupportedModel)
	assert.Contains(t, err.Error(), "Available models: ['models/m1', 'models/m2']")

	path, _ := srv.generated()
	assert.Empty(t, path)
}
