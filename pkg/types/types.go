package types

import "image"

// DefaultMaxTokens is the completion budget used when a request leaves it unset.
const DefaultMaxTokens = 300

// Request is one image + prompt query against a named provider
type Request struct {
	Provider string
	Model    string
	Prompt   string
	Image    image.Image
	// MaxTokens caps the completion length. Ignored by Gemini.
	MaxTokens int
}

// Response carries the provider's completion text, untouched
type Response struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Text     string `json:"text"`
}
