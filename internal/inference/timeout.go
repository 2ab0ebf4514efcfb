package inference

import (
	"context"
	"errors"
	"time"
)

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every call to next by d. A call that outlives d fails
// with a [*TransportError] whose Timeout method reports true. A non-positive
// d returns next unchanged.
func WithTimeout(next Client, d time.Duration) Client {
	if d <= 0 {
		return next
	}
	return &timeoutClient{next: next, timeout: d}
}

func (c *timeoutClient) Name() string { return c.next.Name() }

func (c *timeoutClient) Infer(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.next.Infer(ctx, req)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			te := AsTransportError(c.next.Name(), r.err)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !te.Timeout() {
				te = &TransportError{Backend: te.Backend, StatusCode: te.StatusCode, Detail: "timeout", Err: errors.Join(context.DeadlineExceeded, r.err)}
			}
			return "", te
		}
		return r.text, nil
	case <-ctx.Done():
		detail := "cancelled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			detail = "timeout after " + c.timeout.String()
		}
		return "", &TransportError{Backend: c.next.Name(), Detail: detail, Err: ctx.Err()}
	}
}
