package openai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/menta2k/vision-query/pkg/processing"
	"github.com/menta2k/vision-query/pkg/types"
	"github.com/menta2k/vision-query/pkg/vlm"
)

const (
	providerName = "OpenAI"

	// DefaultAPIKeyEnv holds the credential unless WithAPIKeyEnv says otherwise.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

var errNoChoices = errors.New("no choices in response")

// reasoning models reject max_tokens and only accept max_completion_tokens
var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

type options struct {
	maxTokens  int
	baseURL    string
	httpClient *http.Client
	apiKeyEnv  string
}

// Option customizes a Client.
type Option func(*options)

// WithMaxTokens sets the completion budget. Zero or less leaves it to the server.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithBaseURL points the client at an OpenAI-compatible server,
// e.g. http://localhost:8080/v1 for llama.cpp.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient replaces the SDK's default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithAPIKeyEnv reads the credential from a different environment variable.
func WithAPIKeyEnv(name string) Option {
	return func(o *options) { o.apiKeyEnv = name }
}

// Client queries an OpenAI-compatible chat completion endpoint. It holds
// options only; every call builds a fresh SDK client and re-reads the
// credential.
type Client struct {
	opts options
}

// NewClient creates a Client with a 300 token default budget.
func NewClient(opts ...Option) *Client {
	o := options{
		maxTokens: types.DefaultMaxTokens,
		apiKeyEnv: DefaultAPIKeyEnv,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{opts: o}
}

// Query is shorthand for NewClient(opts...).Query.
func Query(ctx context.Context, img image.Image, prompt, model string, opts ...Option) (string, error) {
	return NewClient(opts...).Query(ctx, img, prompt, model)
}

// Name returns the provider label.
func (c *Client) Name() string {
	return providerName
}

// ListModels returns the IDs of every model the account can see.
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

// Query sends prompt and img as a single user turn and returns the first
// choice's message content exactly as received.
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

func (c *Client) query(ctx context.Context, sdk *goopenai.Client, img image.Image, prompt, model string) (string, error) {
	catalog, err := listModels(ctx, sdk)
	if err != nil {
		return "", err
	}
	if err := vlm.RequireModel(providerName, model, catalog); err != nil {
		return "", err
	}

	imgB64, err := processing.EncodePNGBase64(img)
	if err != nil {
		return "", err
	}

	req := goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL: processing.DataURI(processing.PNGMimeType, imgB64),
						},
					},
				},
			},
		},
	}
	if c.opts.maxTokens > 0 {
		if isReasoningModel(model) {
			req.MaxCompletionTokens = c.opts.maxTokens
		} else {
			req.MaxTokens = c.opts.maxTokens
		}
	}

	resp, err := sdk.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) sdkClient() (*goopenai.Client, error) {
	key, err := vlm.APIKey(providerName, providerName, c.opts.apiKeyEnv)
	if err != nil {
		return nil, err
	}

	cfg := goopenai.DefaultConfig(key)
	if c.opts.baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(c.opts.baseURL, "/")
	}
	if c.opts.httpClient != nil {
		cfg.HTTPClient = c.opts.httpClient
	}
	return goopenai.NewClientWithConfig(cfg), nil
}

func listModels(ctx context.Context, sdk *goopenai.Client) ([]string, error) {
	list, err := sdk.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func isReasoningModel(model string) bool {
	for _, p := range reasoningPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
