// Package mock provides a test double for the inference.Client interface.
//
// Replies are chosen in this order: Respond (when set), then Replies in
// sequence, then Default. Every call is recorded.
//
// Example:
//
//	c := &mock.Client{Replies: []mock.Reply{
//	    {Text: `<answer>{"category": "combat", "confidence": 0.9}</answer>`},
//	    {Text: `<answer>{"action": "attack", "target": "wolf", "confidence": 0.8}</answer>`},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/glyphcmd/internal/inference"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	// Err, if non-nil, is returned (wrapped as a TransportError) instead of
	// Text.
	Err error
}

// Client is a mock implementation of inference.Client.
type Client struct {
	mu sync.Mutex

	// ID is returned by Name. Defaults to "mock".
	ID string

	// Respond, if set, computes the reply for every call.
	Respond func(req inference.Request) Reply

	// Replies are served in order.
	Replies []Reply

	// Default is served once Replies is exhausted.
	Default Reply

	// Calls records every request in order.
	Calls []inference.Request
}

var _ inference.Client = (*Client)(nil)

// Infer implements inference.Client.
func (c *Client) Infer(_ context.Context, req inference.Request) (string, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, req)
	var r Reply
	switch {
	case c.Respond != nil:
		fn := c.Respond
		c.mu.Unlock()
		r = fn(req)
		c.mu.Lock()
	case len(c.Replies) > 0:
		r = c.Replies[0]
		c.Replies = c.Replies[1:]
	default:
		r = c.Default
	}
	c.mu.Unlock()

	if r.Err != nil {
		return "", inference.AsTransportError(c.Name(), r.Err)
	}
	return r.Text, nil
}

// Name implements inference.Client.
func (c *Client) Name() string {
	if c.ID == "" {
		return "mock"
	}
	return c.ID
}

// Requests returns a copy of the recorded calls.
func (c *Client) Requests() []inference.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]inference.Request, len(c.Calls))
	copy(out, c.Calls)
	return out
}

// CallCount returns the number of recorded calls.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
