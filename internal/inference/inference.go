// Package inference is the boundary between the recognizer and the model
// backend: one prompt in, one raw text reply out.
//
// Every failure crossing this boundary is a [*TransportError], so callers
// branch on a single error type no matter which backend is configured.
// Timeouts are imposed here ([WithTimeout]) and surface as transport errors
// as well. Nothing in this package retries.
package inference

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single inference call.
type Request struct {
	// Prompt is the fully compiled prompt.
	Prompt string

	// Model overrides the backend's configured model when the backend
	// supports per-call model selection. Empty means the configured model.
	Model string

	// Stage labels the call for logs and metrics, e.g. "router" or
	// "handler". It does not affect the request.
	Stage string
}

// Client performs inference calls. Implementations must be safe for
// concurrent use and must return only [*TransportError] errors.
type Client interface {
	Infer(ctx context.Context, req Request) (string, error)

	// Name identifies the backend in logs, metrics and errors.
	Name() string
}

// TransportError reports an unreachable backend, a non-success status, an
// unreadable reply or a timeout.
type TransportError struct {
	// Backend is the [Client.Name] of the failing backend.
	Backend string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Detail is a short human readable description, e.g. a response body
	// excerpt.
	Detail string

	// Err is the underlying error, if any.
	Err error
}

func (e *TransportError) Error() string {
	msg := "inference: " + e.Backend
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call failed because its deadline passed.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// AsTransportError returns err as a *TransportError, wrapping it for backend
// when it is not one already. It returns nil for a nil err.
func AsTransportError(backend string, err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Backend: backend, Err: err}
}

// ClientFunc adapts a function to [Client]. Errors it returns are wrapped
// into [*TransportError].
type ClientFunc struct {
	ID string
	Fn func(ctx context.Context, req Request) (string, error)
}

// Infer implements [Client].
func (f ClientFunc) Infer(ctx context.Context, req Request) (string, error) {
	out, err := f.Fn(ctx, req)
	if err != nil {
		return "", AsTransportError(f.ID, err)
	}
	return out, nil
}

// Name implements [Client].
func (f ClientFunc) Name() string { return f.ID }
