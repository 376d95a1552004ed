// Package visionquery sends one image and one text prompt to a remote
// vision-language model and returns the completion text.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		visionquery "github.com/menta2k/vision-query"
//		"github.com/menta2k/vision-query/pkg/processing"
//	)
//
//	func main() {
//		img, err := processing.NewProcessor().LoadImage("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// OPENAI_API_KEY must be set
//		vq := visionquery.New()
//		text, err := vq.Query(context.Background(), visionquery.ProviderOpenAI, img,
//			"What is in this picture?", "gpt-4o-mini")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(text)
//	}
//
// Three providers are available, each in its own package:
//
//  1. OpenAI (pkg/openai): chat completions with a base64 PNG data URI
//  2. Gemini (pkg/gemini): generateContent with the raw PNG bytes
//  3. Ollama (pkg/ollama): local chat with the PNG attached to the message
//
// Every query reads the credential from the environment, fetches the
// provider's live model catalog, rejects models that are not in it, and then
// makes exactly one generation request. Nothing is cached, retried or logged.
// Failures are *vlm.Error values of three kinds: configuration, unsupported
// model and transport. Use errors.Is with vlm.ErrConfiguration,
// vlm.ErrUnsupportedModel or vlm.ErrTransport to branch on them.
package visionquery

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/menta2k/vision-query/pkg/client"
	"github.com/menta2k/vision-query/pkg/gemini"
	"github.com/menta2k/vision-query/pkg/ollama"
	"github.com/menta2k/vision-query/pkg/openai"
	"github.com/menta2k/vision-query/pkg/types"
)

// Version of the vision-query library
const Version = "1.0.0"

// Provider names a vision model backend
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
)

// Providers lists every supported backend
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderGemini, ProviderOllama}
}

// ParseProvider accepts a provider name in any case
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Providers() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (use openai, gemini or ollama)", name)
}

// Options configures the provider clients
type Options struct {
	// MaxTokens caps completions for OpenAI and Ollama. Zero means 300.
	MaxTokens int

	OpenAIBaseURL   string
	OpenAIAPIKeyEnv string

	GeminiAPIKeyEnv string
	GeminiEndpoint  string

	OllamaHost string

	// HTTPClient is used by the OpenAI and Ollama clients. Gemini keeps the
	// SDK transport because a custom client would bypass API key auth.
	HTTPClient *http.Client
}

// VisionQuery dispatches queries to the provider the caller picks
type VisionQuery struct {
	opts Options
}

// New creates a VisionQuery with default options
func New() *VisionQuery {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a VisionQuery with custom options
func NewWithOptions(opts Options) *VisionQuery {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = types.DefaultMaxTokens
	}
	return &VisionQuery{opts: opts}
}

// Client returns the provider client for p
func (vq *VisionQuery) Client(p Provider) (client.VisionClient, error) {
	return vq.client(p, vq.opts.MaxTokens)
}

// Query sends img and prompt to model on provider p
func (vq *VisionQuery) Query(ctx context.Context, p Provider, img image.Image, prompt, model string) (string, error) {
	c, err := vq.Client(p)
	if err != nil {
		return "", err
	}
	return c.Query(ctx, img, prompt, model)
}

// ListModels fetches the live catalog of provider p
func (vq *VisionQuery) ListModels(ctx context.Context, p Provider) ([]string, error) {
	c, err := vq.Client(p)
	if err != nil {
		return nil, err
	}
	return c.ListModels(ctx)
}

// Run executes a Request. A zero MaxTokens falls back to the options.
func (vq *VisionQuery) Run(ctx context.Context, req types.Request) (types.Response, error) {
	p, err := ParseProvider(req.Provider)
	if err != nil {
		return types.Response{}, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = vq.opts.MaxTokens
	}
	c, err := vq.client(p, maxTokens)
	if err != nil {
		return types.Response{}, err
	}

	text, err := c.Query(ctx, req.Image, req.Prompt, req.Model)
	if err != nil {
		return types.Response{}, err
	}
	return types.Response{Provider: string(p), Model: req.Model, Text: text}, nil
}

// Catalogs fetches the catalogs of several providers concurrently. The
// first failure cancels the rest.
func (vq *VisionQuery) Catalogs(ctx context.Context, providers ...Provider) (map[Provider][]string, error) {
	if len(providers) == 0 {
		providers = Providers()
	}

	var mu sync.Mutex
	out := make(map[Provider][]string, len(providers))
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		g.Go(func() error {
			models, err := vq.ListModels(ctx, p)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			mu.Lock()
			out[p] = models
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CatalogResult is one provider's catalog or the error fetching it.
type CatalogResult struct {
	Models []string
	Err    error
}

// Survey fetches the catalogs of several providers concurrently. Unlike
// Catalogs, a failing provider does not stop the others; its error is
// reported in its own result.
func (vq *VisionQuery) Survey(ctx context.Context, providers ...Provider) map[Provider]CatalogResult {
	if len(providers) == 0 {
		providers = Providers()
	}

	var mu sync.Mutex
	out := make(map[Provider]CatalogResult, len(providers))
	var g errgroup.Group
	for _, p := range providers {
		g.Go(func() error {
			models, err := vq.ListModels(ctx, p)
			mu.Lock()
			out[p] = CatalogResult{Models: models, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (vq *VisionQuery) client(p Provider, maxTokens int) (client.VisionClient, error) {
	switch p {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithMaxTokens(maxTokens)}
		if vq.opts.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(vq.opts.OpenAIBaseURL))
		}
		if vq.opts.OpenAIAPIKeyEnv != "" {
			opts = append(opts, openai.WithAPIKeyEnv(vq.opts.OpenAIAPIKeyEnv))
		}
		if vq.opts.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(vq.opts.HTTPClient))
		}
		return openai.NewClient(opts...), nil
	case ProviderGemini:
		var opts []gemini.Option
		if vq.opts.GeminiAPIKeyEnv != "" {
			opts = append(opts, gemini.WithAPIKeyEnv(vq.opts.GeminiAPIKeyEnv))
		}
		if vq.opts.GeminiEndpoint != "" {
			opts = append(opts, gemini.WithClientOptions(option.WithEndpoint(vq.opts.GeminiEndpoint)))
		}
		return gemini.NewClient(opts...), nil
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithMaxTokens(maxTokens)}
		if vq.opts.OllamaHost != "" {
			opts = append(opts, ollama.WithHost(vq.opts.OllamaHost))
		}
		if vq.opts.HTTPClient != nil {
			opts = append(opts, ollama.WithHTTPClient(vq.opts.HTTPClient))
		}
		return ollama.NewClient(opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p)
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
