// Package generate invokes the remote text-generation backend and guarantees
// citation-bearing output: when the backend is unconfigured, fails, or
// returns nothing, a deterministic offline composer produces the response
// instead. Callers never see a generation error, only a fallback flag.
package generate

import (
	"context"
	"errors"
)

// ErrEmptyResponse marks a backend reply with no usable text.
var ErrEmptyResponse = errors.New("generate: empty response from model")

// Client is the remote text-completion function. Cross-cutting concerns
// (fallback, logging, caching) live outside the client.
type Client interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
	Close() error
}

// PermanentError wraps an error that will not resolve with retries, such as
// an invalid API key or malformed request.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
