// Package ollama is an inference client for Ollama's native generate
// endpoint.
//
// It sends {model, prompt, stream: false} to POST /api/generate and returns
// the "response" field of the reply. Any non-200 status, transport failure
// or undecodable body is reported as an [*inference.TransportError].
//
// Example usage:
//
//	c, err := ollama.New("", "qwen3:0.6b") // connects to http://localhost:11434
//	if err != nil {
//	    log.Fatal(err)
//	}
//	text, err := c.Infer(ctx, inference.Request{Prompt: prompt})
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/glyphcmd/internal/inference"
)

// DefaultBaseURL is the default base URL for a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// DefaultModel is used when no model is configured.
const DefaultModel = "qwen3:0.6b"

// maxErrorBody caps how much of an error response is copied into Detail.
const maxErrorBody = 512

var _ inference.Client = (*Client)(nil)

// Client implements inference.Client using a local Ollama server. It is
// safe for concurrent use.
type Client struct {
	baseURL    string
	model      string
	options    map[string]any
	httpClient *http.Client
}

// config holds optional configuration collected from functional options.
type config struct {
	timeout    time.Duration
	options    map[string]any
	httpClient *http.Client
}

// Option is a functional option for Client.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout on the underlying HTTP client.
// A zero or negative value means no timeout (the default).
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithOptions sets Ollama model options (temperature, num_predict, ...)
// sent with every request.
func WithOptions(opts map[string]any) Option {
	return func(c *config) {
		c.options = opts
	}
}

// WithHTTPClient replaces the HTTP client. WithTimeout still applies to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// New constructs a new Ollama Client.
//
// baseURL is the base URL of the Ollama server. If empty, DefaultBaseURL is
// used. A trailing slash is stripped automatically. model defaults to
// DefaultModel.
func New(baseURL string, model string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("ollama: base URL %q must start with http:// or https://", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.timeout > 0 {
		copied := *hc
		copied.Timeout = cfg.timeout
		hc = &copied
	}

	return &Client{
		baseURL:    baseURL,
		model:      model,
		options:    cfg.options,
		httpClient: hc,
	}, nil
}

// Name implements inference.Client.
func (c *Client) Name() string { return "ollama" }

// Model returns the configured default model.
func (c *Client) Model() string { return c.model }

// generateRequest is the JSON request body sent to /api/generate.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the subset of the /api/generate reply we use.
type generateResponse struct {
	Model    string  `json:"model"`
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// Infer implements inference.Client.
func (c *Client) Infer(ctx context.Context, req inference.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body, err := json.Marshal(generateRequest{
		Model:   model,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: c.options,
	})
	if err != nil {
		return "", c.fail(0, "marshal request", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", c.fail(0, "build request", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return "", c.fail(0, "http", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", c.fail(resp.StatusCode, strings.TrimSpace(string(excerpt)), nil)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", c.fail(resp.StatusCode, "decode response", err)
	}
	if out.Response == nil {
		return "", c.fail(resp.StatusCode, "decode response", errors.New(`missing "response" field`))
	}
	return *out.Response, nil
}

// Ping checks that the server is reachable by listing local models.
func (c *Client) Ping(ctx context.Context) error {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return c.fail(0, "build request", err)
	}
	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return c.fail(0, "http", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return c.fail(resp.StatusCode, "ping", nil)
	}
	return nil
}

func (c *Client) fail(status int, detail string, err error) *inference.TransportError {
	return &inference.TransportError{Backend: c.Name(), StatusCode: status, Detail: detail, Err: err}
}
