package client

import (
	"context"
	"image"
)

// VisionClient is a single vision-language provider.
type VisionClient interface {
	// Name returns the provider label used in error messages, e.g. "OpenAI".
	Name() string
	// ListModels fetches the provider's live model catalog.
	ListModels(ctx context.Context) ([]string, error)
	// Query validates model against the live catalog, sends img and prompt
	// in one request and returns the completion text verbatim.
	Query(ctx context.Context, img image.Image, prompt, model string) (string, error)
}
