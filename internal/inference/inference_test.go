package inference_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/glyphcmd/internal/inference"
	"github.com/MrWong99/glyphcmd/internal/inference/mock"
	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/pkg/provider/llm"
	llmmock "github.com/MrWong99/glyphcmd/pkg/provider/llm/mock"
)

func TestTransportError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *inference.TransportError
		want string
	}{
		{
			name: "status with detail",
			err:  &inference.TransportError{Backend: "ollama", StatusCode: 500, Detail: "model not loaded"},
			want: "inference: ollama: status 500: model not loaded",
		},
		{
			name: "wrapped cause",
			err:  &inference.TransportError{Backend: "openai", Err: errors.New("connection refused")},
			want: "inference: openai: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAsTransportError(t *testing.T) {
	t.Parallel()

	if inference.AsTransportError("x", nil) != nil {
		t.Error("nil error should stay nil")
	}

	orig := &inference.TransportError{Backend: "ollama", StatusCode: 502}
	if got := inference.AsTransportError("other", orig); got != orig {
		t.Error("existing TransportError should be returned as-is")
	}

	cause := errors.New("boom")
	got := inference.AsTransportError("openai", cause)
	if got.Backend != "openai" || !errors.Is(got, cause) {
		t.Errorf("wrapped = %+v, want backend openai wrapping cause", got)
	}
}

func TestClientFunc(t *testing.T) {
	t.Parallel()

	c := inference.ClientFunc{ID: "fn", Fn: func(_ context.Context, req inference.Request) (string, error) {
		if req.Prompt == "fail" {
			return "", errors.New("nope")
		}
		return "echo:" + req.Prompt, nil
	}}

	out, err := c.Infer(context.Background(), inference.Request{Prompt: "hi"})
	if err != nil || out != "echo:hi" {
		t.Fatalf("Infer = %q, %v", out, err)
	}

	_, err = c.Infer(context.Background(), inference.Request{Prompt: "fail"})
	var te *inference.TransportError
	if !errors.As(err, &te) || te.Backend != "fn" {
		t.Fatalf("err = %v, want TransportError from fn", err)
	}
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	slow := inference.ClientFunc{ID: "slow", Fn: func(ctx context.Context, _ inference.Request) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}

	t.Run("deadline exceeded", func(t *testing.T) {
		t.Parallel()
		c := inference.WithTimeout(slow, 20*time.Millisecond)
		start := time.Now()
		_, err := c.Infer(context.Background(), inference.Request{Prompt: "p"})
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Fatalf("Infer took %v, timeout not enforced", elapsed)
		}
		var te *inference.TransportError
		if !errors.As(err, &te) {
			t.Fatalf("err = %v, want TransportError", err)
		}
		if !te.Timeout() {
			t.Errorf("Timeout() = false for %v", te)
		}
		if inference.ErrorKind(err) != "timeout" {
			t.Errorf("ErrorKind = %q, want timeout", inference.ErrorKind(err))
		}
	})

	t.Run("fast call passes through", func(t *testing.T) {
		t.Parallel()
		m := &mock.Client{Default: mock.Reply{Text: "ok"}}
		c := inference.WithTimeout(m, time.Second)
		out, err := c.Infer(context.Background(), inference.Request{Prompt: "p"})
		if err != nil || out != "ok" {
			t.Fatalf("Infer = %q, %v", out, err)
		}
		if c.Name() != "mock" {
			t.Errorf("Name = %q, want mock", c.Name())
		}
	})

	t.Run("non-positive returns next", func(t *testing.T) {
		t.Parallel()
		m := &mock.Client{}
		if inference.WithTimeout(m, 0) != inference.Client(m) {
			t.Error("WithTimeout(0) should return the wrapped client")
		}
	})
}

func TestFromLLM(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		ProviderName: "openai",
		CompleteResponse: &llm.CompletionResponse{
			Content: `<answer>{"category":"movement"}</answer>`,
			Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
		},
	}
	var gotUsage llm.Usage
	c := inference.FromLLM(p,
		inference.WithSystemPrompt("be terse"),
		inference.WithTemperature(0.1),
		inference.WithMaxTokens(256),
		inference.WithUsageHook(func(backend string, u llm.Usage) {
			if backend != "openai" {
				t.Errorf("usage backend = %q", backend)
			}
			gotUsage = u
		}),
	)

	out, err := c.Infer(context.Background(), inference.Request{Prompt: "go north", Stage: "router"})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if out != `<answer>{"category":"movement"}</answer>` {
		t.Errorf("out = %q", out)
	}
	if gotUsage.TotalTokens != 14 {
		t.Errorf("usage = %+v", gotUsage)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	want := llm.CompletionRequest{
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "go north"}},
		SystemPrompt: "be terse",
		Temperature:  0.1,
		MaxTokens:    256,
	}
	if diff := cmp.Diff(want, calls[0].Req); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestFromLLM_Errors(t *testing.T) {
	t.Parallel()

	t.Run("provider error", func(t *testing.T) {
		t.Parallel()
		c := inference.FromLLM(&llmmock.Provider{ProviderName: "groq", CompleteErr: errors.New("429")})
		_, err := c.Infer(context.Background(), inference.Request{Prompt: "x"})
		var te *inference.TransportError
		if !errors.As(err, &te) || te.Backend != "groq" {
			t.Fatalf("err = %v, want TransportError from groq", err)
		}
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		c := inference.FromLLM(&llmmock.Provider{})
		_, err := c.Infer(context.Background(), inference.Request{Prompt: "x"})
		var te *inference.TransportError
		if !errors.As(err, &te) {
			t.Fatalf("err = %v, want TransportError", err)
		}
	})
}

func TestInstrument(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m := &mock.Client{ID: "ollama", Replies: []mock.Reply{
		{Text: "fine"},
		{Err: &inference.TransportError{Backend: "ollama", StatusCode: 503}},
	}}
	c := inference.Instrument(m, met)

	if out, err := c.Infer(context.Background(), inference.Request{Prompt: "a", Stage: "router"}); err != nil || out != "fine" {
		t.Fatalf("first Infer = %q, %v", out, err)
	}
	if _, err := c.Infer(context.Background(), inference.Request{Prompt: "b", Stage: "handler"}); err == nil {
		t.Fatal("second Infer should fail")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, mm := range sm.Metrics {
			sum, ok := mm.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				counts[mm.Name] += dp.Value
			}
		}
	}
	if counts["glyphcmd.provider.requests"] != 2 {
		t.Errorf("requests = %d, want 2", counts["glyphcmd.provider.requests"])
	}
	if counts["glyphcmd.provider.errors"] != 1 {
		t.Errorf("errors = %d, want 1", counts["glyphcmd.provider.errors"])
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("dial tcp: refused"), "transport"},
		{&inference.TransportError{StatusCode: 500}, "status"},
		{&inference.TransportError{StatusCode: 200, Detail: "decode response"}, "transport"},
		{&inference.TransportError{Err: context.DeadlineExceeded}, "timeout"},
	}
	for _, tt := range tests {
		if got := inference.ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
