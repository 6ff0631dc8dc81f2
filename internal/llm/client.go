// Package llm abstracts the text generator behind a small client
// interface. Cross-cutting concerns (retry, rate limiting, caching,
// logging) are layered on as middleware rather than baked into any one
// client.
package llm

import "context"

// Client is the generation seam. Generate returns the raw model text;
// callers own normalization and validation of the content.
type Client interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// PermanentError marks a failure that will not resolve with retries, such
// as an invalid API key or a rejected prompt. The retry middleware
// short-circuits on it.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
