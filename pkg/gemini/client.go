// Package gemini queries Google Gemini vision models through generative-ai-go.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/menta2k/vision-query/pkg/processing"
	"github.com/menta2k/vision-query/pkg/vlm"
)

const (
	providerName = "Gemini"
	keyVendor    = "Google"

	// DefaultAPIKeyEnv holds the credential unless WithAPIKeyEnv says otherwise.
	DefaultAPIKeyEnv = "GOOGLE_API_KEY"
)

var (
	errNoCandidates = errors.New("response has no candidates")
	errNoText       = errors.New("response has no text parts")
)

type dialFunc func(ctx context.Context, apiKey string, extra []option.ClientOption) (service, error)

type options struct {
	apiKeyEnv     string
	clientOptions []option.ClientOption
	dial          dialFunc
}

// Option customizes a Client.
type Option func(*options)

// WithClientOptions forwards options (endpoint, HTTP client, ...) to genai.NewClient.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.clientOptions = append(o.clientOptions, opts...) }
}

// WithAPIKeyEnv reads the credential from a different environment variable.
func WithAPIKeyEnv(name string) Option {
	return func(o *options) { o.apiKeyEnv = name }
}

// Client queries the Gemini generateContent API.
type Client struct {
	opts options
}

// NewClient creates a Client. The SDK client itself is built per call.
func NewClient(opts ...Option) *Client {
	o := options{
		apiKeyEnv: DefaultAPIKeyEnv,
		dial:      dialSDK,
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

func (c *Client) Name() string {
	return providerName
}

// ListModels returns the full resource names, e.g. "models/gemini-1.5-flash".
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	svc, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	models, err := svc.ListModels(ctx)
	if err != nil {
		return nil, vlm.Transport(providerName, providerName, "", err)
	}
	return models, nil
}

// Query sends the prompt and the image as two parts of one generateContent
// call. The model must match a catalog name exactly.
func (c *Client) Query(ctx context.Context, img image.Image, prompt, model string) (string, error) {
	svc, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer svc.Close()

	text, err := query(ctx, svc, img, prompt, model)
	if err != nil {
		return "", vlm.Wrap(providerName, providerName, model, err)
	}
	return text, nil
}

func (c *Client) connect(ctx context.Context) (service, error) {
	key, err := vlm.APIKey(providerName, keyVendor, c.opts.apiKeyEnv)
	if err != nil {
		return nil, err
	}
	svc, err := c.opts.dial(ctx, key, c.opts.clientOptions)
	if err != nil {
		return nil, vlm.Transport(providerName, providerName, "", fmt.Errorf("create client: %w", err))
	}
	return svc, nil
}

func query(ctx context.Context, svc service, img image.Image, prompt, model string) (string, error) {
	catalog, err := svc.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	if err := vlm.RequireModel(providerName, model, catalog); err != nil {
		return "", err
	}

	// the SDK base64s blobs itself, it only needs the raw PNG bytes
	data, err := processing.EncodePNG(img)
	if err != nil {
		return "", err
	}

	resp, err := svc.GenerateContent(ctx, model, genai.Text(prompt), genai.ImageData("png", data))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errNoCandidates
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("candidate has no content (finish reason: %v)", cand.FinishReason)
	}

	var sb strings.Builder
	found := false
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
			found = true
		}
	}
	if !found {
		return "", errNoText
	}
	return sb.String(), nil
}
