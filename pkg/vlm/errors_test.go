package vlm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyMissing(t *testing.T) {
	t.Setenv("VLM_TEST_KEY", "")

	_, err := APIKey("Gemini", "Google", "VLM_TEST_KEY")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, "Google API key is missing. Set 'VLM_TEST_KEY' in environment variables", err.Error())

	var ve *Error
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Gemini", ve.Provider)
}

func TestAPIKeyPresent(t *testing.T) {
	t.Setenv("VLM_TEST_KEY", "sk-test")

	key, err := APIKey("OpenAI", "OpenAI", "VLM_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)
}

func TestRequireModel(t *testing.T) {
	require.NoError(t, RequireModel("OpenAI", "m1", []string{"m1", "m2"}))

	err := RequireModel("OpenAI", "m3", []string{"m1", "m2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
	assert.Equal(t, "Model 'm3' is not supported. Available models: ['m1', 'm2']", err.Error())

	var ve *Error
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"m1", "m2"}, ve.Available)
	assert.Equal(t, "m3", ve.Model)
}

func TestRequireModelEmptyCatalog(t *testing.T) {
	err := RequireModel("Gemini", "m1", nil)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
	assert.Contains(t, err.Error(), "Available models: []")
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("OpenAI", "OpenAI", "m1", nil))

	cause := errors.New("connection reset")
	err := Wrap("OpenAI", "OpenAI", "m1", cause)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to generate OpenAI output: connection reset", err.Error())

	unsupported := UnsupportedModel("OpenAI", "m3", []string{"m1"})
	wrapped := Wrap("OpenAI", "OpenAI", "m3", fmt.Errorf("validate: %w", unsupported))
	assert.ErrorIs(t, wrapped, ErrUnsupportedModel)
	assert.NotErrorIs(t, wrapped, ErrTransport)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "unsupported model", KindUnsupportedModel.String())
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
