package gemini

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// service is the part of the SDK a query touches.
type service interface {
	ListModels(ctx context.Context) ([]string, error)
	GenerateContent(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	Close() error
}

type sdkService struct {
	client *genai.Client
}

func dialSDK(ctx context.Context, apiKey string, extra []option.ClientOption) (service, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, extra...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &sdkService{client: client}, nil
}

func (s *sdkService) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	it := s.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, m.Name)
	}
}

func (s *sdkService) GenerateContent(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	return s.client.GenerativeModel(model).GenerateContent(ctx, parts...)
}

func (s *sdkService) Close() error {
	return s.client.Close()
}
