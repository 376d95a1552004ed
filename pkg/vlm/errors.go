// Package vlm holds the pieces every provider query shares: the error
// taxonomy, credential lookup and the catalog membership check.
package vlm

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a query failure.
type Kind int

const (
	// KindConfiguration means the provider credential is missing or the
	// client could not be configured. Nothing was sent over the network.
	KindConfiguration Kind = iota + 1
	// KindUnsupportedModel means the requested model is not in the live catalog.
	KindUnsupportedModel
	// KindTransport covers everything else: network, auth, malformed responses.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUnsupportedModel:
		return "unsupported model"
	case KindTransport:
		return "transport"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. A *Error matches the sentinel of its Kind.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrUnsupportedModel = errors.New("unsupported model")
	ErrTransport        = errors.New("transport error")
)

// Error is returned by every provider query.
type Error struct {
	Kind     Kind
	Provider string
	// Model is the requested model identifier, if known.
	Model string
	// Available is the catalog fetched at call time. Only set for KindUnsupportedModel.
	Available []string
	Err       error

	msg string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.msg + ": " + e.Err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrUnsupportedModel:
		return e.Kind == KindUnsupportedModel
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// Configuration builds a KindConfiguration error.
func Configuration(provider, msg string, err error) *Error {
	return &Error{Kind: KindConfiguration, Provider: provider, Err: err, msg: msg}
}

// UnsupportedModel builds a KindUnsupportedModel error listing the catalog.
func UnsupportedModel(provider, model string, available []string) *Error {
	return &Error{
		Kind:      KindUnsupportedModel,
		Provider:  provider,
		Model:     model,
		Available: append([]string(nil), available...),
		msg:       fmt.Sprintf("Model '%s' is not supported. Available models: %s", model, formatList(available)),
	}
}

// Transport wraps err as a KindTransport error for the named provider.
// The cause's message is embedded in Error().
func Transport(provider, label, model string, err error) *Error {
	return &Error{
		Kind:     KindTransport,
		Provider: provider,
		Model:    model,
		Err:      err,
		msg:      fmt.Sprintf("failed to generate %s output", label),
	}
}

// Wrap classifies err for provider. Errors that already carry a Kind pass
// through untouched so an unsupported-model result is never re-labelled.
func Wrap(provider, label, model string, err error) error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) {
		return err
	}
	return Transport(provider, label, model, err)
}

// formatList renders ['a', 'b'].
func formatList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "'" + it + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
