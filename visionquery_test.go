package visionquery

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/vision-query/pkg/types"
	"github.com/menta2k/vision-query/pkg/vlm"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

// newOllamaStub serves /api/tags and /api/chat; the chat reply echoes num_predict
func newOllamaStub(t *testing.T, catalog ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/tags":
			models := []map[string]string{}
			for _, name := range catalog {
				models = append(models, map[string]string{"name": name, "model": name})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
		case "/api/chat":
			var req struct {
				Options map[string]any `json:"options"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			reply := "no budget"
			if n, ok := req.Options["num_predict"].(float64); ok && n == 42 {
				reply = "budget 42"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]any{"role": "assistant", "content": reply},
				"done":    true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"openai", ProviderOpenAI, false},
		{"Gemini", ProviderGemini, false},
		{" OLLAMA ", ProviderOllama, false},
		{"anthropic", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNew(t *testing.T) {
	vq := New()
	require.NotNil(t, vq)
	assert.Equal(t, types.DefaultMaxTokens, vq.opts.MaxTokens)

	for _, p := range Providers() {
		c, err := vq.Client(p)
		require.NoError(t, err)
		assert.NotEmpty(t, c.Name())
	}

	_, err := vq.Client(Provider("bogus"))
	assert.Error(t, err)
}

func TestQueryMissingCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	vq := New()
	for _, p := range []Provider{ProviderOpenAI, ProviderGemini} {
		_, err := vq.Query(context.Background(), p, createTestImage(10, 10), "describe", "m1")
		assert.ErrorIs(t, err, vlm.ErrConfiguration, string(p))
	}
}

func TestRun(t *testing.T) {
	srv := newOllamaStub(t, "m1")
	vq := NewWithOptions(Options{OllamaHost: srv.URL})

	resp, err := vq.Run(context.Background(), types.Request{
		Provider:  "ollama",
		Model:     "m1",
		Prompt:    "describe",
		Image:     createTestImage(20, 20),
		MaxTokens: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, types.Response{Provider: "ollama", Model: "m1", Text: "budget 42"}, resp)

	_, err = vq.Run(context.Background(), types.Request{Provider: "ollama", Model: "m9", Image: createTestImage(4, 4)})
	assert.ErrorIs(t, err, vlm.ErrUnsupportedModel)

	_, err = vq.Run(context.Background(), types.Request{Provider: "nope"})
	assert.Error(t, err)
}

func TestCatalogs(t *testing.T) {
	srv := newOllamaStub(t, "llava:latest", "m1")
	vq := NewWithOptions(Options{OllamaHost: srv.URL})

	catalogs, err := vq.Catalogs(context.Background(), ProviderOllama)
	require.NoError(t, err)
	assert.Equal(t, map[Provider][]string{ProviderOllama: {"llava:latest", "m1"}}, catalogs)

	t.Setenv("OPENAI_API_KEY", "")
	_, err = vq.Catalogs(context.Background(), ProviderOllama, ProviderOpenAI)
	require.Error(t, err)
	assert.ErrorIs(t, err, vlm.ErrConfiguration)
	assert.Contains(t, err.Error(), "openai:")
}

func TestSurveyKeepsGoingPastFailures(t *testing.T) {
	srv := newOllamaStub(t, "llava:latest")
	vq := NewWithOptions(Options{OllamaHost: srv.URL})
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	results := vq.Survey(context.Background())
	require.Len(t, results, 3)

	assert.NoError(t, results[ProviderOllama].Err)
	assert.Equal(t, []string{"llava:latest"}, results[ProviderOllama].Models)
	assert.ErrorIs(t, results[ProviderOpenAI].Err, vlm.ErrConfiguration)
	assert.ErrorIs(t, results[ProviderGemini].Err, vlm.ErrConfiguration)
	assert.Contains(t, results[ProviderGemini].Err.Error(), "Google API key is missing")
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
