package resilience

import (
	"context"
	"strings"

	"github.com/MrWong99/glyphcmd/internal/inference"
)

// InferenceFallback implements [inference.Client] with failover across
// several backends, each behind its own circuit breaker.
type InferenceFallback struct {
	group *FallbackGroup[inference.Client]
}

var _ inference.Client = (*InferenceFallback)(nil)

// NewInferenceFallback creates an [InferenceFallback] with primary as the
// preferred backend. The entry is named after primary.Name().
func NewInferenceFallback(primary inference.Client, cfg FallbackConfig) *InferenceFallback {
	return &InferenceFallback{group: NewFallbackGroup(primary, primary.Name(), cfg)}
}

// AddFallback registers c as the next backend to try.
func (f *InferenceFallback) AddFallback(c inference.Client) {
	f.group.AddFallback(c.Name(), c)
}

// Name lists the backends in the order they are tried, joined by "|".
func (f *InferenceFallback) Name() string {
	names := make([]string, len(f.group.entries))
	for i, e := range f.group.entries {
		names[i] = e.name
	}
	return strings.Join(names, "|")
}

// Infer sends req to the first healthy backend. When every backend fails
// the returned [*inference.TransportError] wraps [ErrAllFailed] together with
// the last backend's error.
func (f *InferenceFallback) Infer(ctx context.Context, req inference.Request) (string, error) {
	text, _, err := ExecuteWithResult(ctx, f.group, func(c inference.Client) (string, error) {
		return c.Infer(ctx, req)
	})
	if err != nil {
		te := &inference.TransportError{Backend: f.Name(), Detail: "no backend succeeded", Err: err}
		if last := inference.AsTransportError("", err); last != nil && last.StatusCode != 0 {
			te.StatusCode = last.StatusCode
		}
		return "", te
	}
	return text, nil
}

// Status reports each backend's breaker state.
func (f *InferenceFallback) Status() []EntryStatus { return f.group.Status() }

// Available reports whether any backend currently accepts calls.
func (f *InferenceFallback) Available() bool { return f.group.Available() }
