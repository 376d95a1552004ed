package ollama

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/vision-query/pkg/processing"
	"github.com/menta2k/vision-query/pkg/types"
	"github.com/menta2k/vision-query/pkg/vlm"
)

const (
	providerName = "Ollama"

	// HostEnv is consulted when no host option is given.
	HostEnv = "OLLAMA_HOST"
	// DefaultHost is used when neither the option nor HostEnv is set.
	DefaultHost = "http://127.0.0.1:11434"
)

type options struct {
	host       string
	httpClient *http.Client
	maxTokens  int
}

// Option customizes a Client.
type Option func(*options)

// WithHost sets the server URL, e.g. http://gpu-box:11434.
func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithMaxTokens sets num_predict. Zero or less leaves the model default.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// Client wraps the Ollama API client
type Client struct {
	opts options
}

// NewClient creates a new Ollama client
func NewClient(opts ...Option) *Client {
	o := options{maxTokens: types.DefaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{opts: o}
}

// Query is shorthand for NewClient(opts...).Query.
func Query(ctx context.Context, img image.Image, prompt, model string, opts ...Option) (string, error) {
	return NewClient(opts...).Query(ctx, img, prompt, model)
}

func (c *Client) Name() string {
	return providerName
}

// ListModels returns the names of the locally pulled models, e.g. "llava:latest".
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	sdk, err := c.sdkClient()
	if err != nil {
		return nil, err
	}
	models, err := listModels(ctx, sdk)
	if err != nil {
		return nil, vlm.Transport(providerName, providerName, "", err)
	}
	return models, nil
}

// Query performs a non-streaming chat with the image attached to the user message
func (c *Client) Query(ctx context.Context, img image.Image, prompt, model string) (string, error) {
	sdk, err := c.sdkClient()
	if err != nil {
		return "", err
	}
	text, err := c.query(ctx, sdk, img, prompt, model)
	if err != nil {
		return "", vlm.Wrap(providerName, providerName, model, err)
	}
	return text, nil
}

func (c *Client) query(ctx context.Context, sdk *api.Client, img image.Image, prompt, model string) (string, error) {
	catalog, err := listModels(ctx, sdk)
	if err != nil {
		return "", err
	}
	model = resolveModel(model, catalog)
	if err := vlm.RequireModel(providerName, model, catalog); err != nil {
		return "", err
	}

	imgBytes, err := processing.EncodePNG(img)
	if err != nil {
		return "", err
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &streamFalse,
	}
	if c.opts.maxTokens > 0 {
		req.Options = map[string]any{"num_predict": c.opts.maxTokens}
	}

	var sb strings.Builder
	err = sdk.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	return sb.String(), nil
}

func (c *Client) sdkClient() (*api.Client, error) {
	host := c.opts.host
	if host == "" {
		host = os.Getenv(HostEnv)
	}
	if host == "" {
		host = DefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}

	parsedURL, err := url.Parse(host)
	if err != nil {
		return nil, vlm.Configuration(providerName, fmt.Sprintf("invalid Ollama host %q", host), err)
	}
	if parsedURL.Host == "" {
		return nil, vlm.Configuration(providerName, fmt.Sprintf("invalid Ollama host %q", host), nil)
	}

	// keep only scheme and host, users often paste .../api/chat
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	hc := c.opts.httpClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return api.NewClient(baseURL, hc), nil
}

// resolveModel maps an untagged name to its ":latest" tag when only the
// tagged form is pulled, the way the Ollama server itself resolves it.
func resolveModel(model string, catalog []string) string {
	if strings.Contains(model, ":") || slices.Contains(catalog, model) {
		return model
	}
	if tagged := model + ":latest"; slices.Contains(catalog, tagged) {
		return tagged
	}
	return model
}

func listModels(ctx context.Context, sdk *api.Client) ([]string, error) {
	resp, err := sdk.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
