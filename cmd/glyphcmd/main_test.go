package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/glyphcmd/internal/config"
	"github.com/MrWong99/glyphcmd/internal/observe"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRegisterBuiltinBackends_CoversKnownBackends(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinBackends(reg, testMetrics(t))

	want := slices.Clone(config.KnownBackends)
	slices.Sort(want)
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Errorf("registered backends mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterBuiltinBackends_Create(t *testing.T) {
	t.Parallel()

	tests := []struct {
		entry    config.BackendEntry
		wantName string
		wantErr  bool
	}{
		{entry: config.BackendEntry{Name: "ollama", BaseURL: "http://localhost:11434", Model: "qwen3:0.6b"}, wantName: "ollama"},
		{entry: config.BackendEntry{Name: "ollama", BaseURL: "localhost:11434"}, wantErr: true},
		{entry: config.BackendEntry{Name: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"}, wantName: "openai"},
		{entry: config.BackendEntry{Name: "anyllm/ollama", BaseURL: "http://localhost:11434", Model: "qwen3:0.6b"}, wantName: "anyllm/ollama"},
		{entry: config.BackendEntry{Name: "anyllm/ollama"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.entry.Name, func(t *testing.T) {
			t.Parallel()
			reg := config.NewRegistry()
			checks := registerBuiltinBackends(reg, testMetrics(t))

			c, err := reg.Create(tt.entry)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Create() returned nil error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error: %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
			if tt.entry.Name == "ollama" && len(checks.targets) != 1 {
				t.Errorf("checks = %d, want the ollama client", len(checks.targets))
			}
		})
	}
}

func TestOptionHelpers(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"temperature": 0.2, "max_tokens": 256, "top": 1.0, "system_prompt": "be terse", "bad": "x"}

	if f, ok := optFloat(opts, "temperature"); !ok || f != 0.2 {
		t.Errorf("optFloat(temperature) = %v, %v", f, ok)
	}
	if f, ok := optFloat(opts, "max_tokens"); !ok || f != 256 {
		t.Errorf("optFloat(max_tokens) = %v, %v", f, ok)
	}
	if n, ok := optInt(opts, "top"); !ok || n != 1 {
		t.Errorf("optInt(top) = %v, %v", n, ok)
	}
	if _, ok := optInt(opts, "bad"); ok {
		t.Error("optInt(bad) ok = true")
	}
	if s := optString(opts, "system_prompt"); s != "be terse" {
		t.Errorf("optString = %q", s)
	}
	if s := optString(nil, "missing"); s != "" {
		t.Errorf("optString(nil) = %q", s)
	}
	if got := len(llmOptions(config.BackendEntry{Options: opts})); got != 3 {
		t.Errorf("llmOptions = %d options, want 3", got)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var level slog.LevelVar
	level.Set(slog.LevelWarn)
	log := newLogger(&buf, &level, config.LogFormatJSON)

	log.Info("hidden")
	log.Warn("shown", "k", "v")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not a single JSON record: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}

	buf.Reset()
	level.Set(slog.LevelDebug)
	log.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug record missing after level change: %q", buf.String())
	}
}

func TestPrintStartupSummary(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Inference.Primary.Model = "a-very-long-model-name-indeed"
	cfg.Recognition.CacheSize = 64
	cfg.Recognition.CacheTTL = 10 * time.Minute

	var buf bytes.Buffer
	printStartupSummary(&buf, cfg)
	out := buf.String()
	for _, want := range []string{"two_stage", "memory", "(disabled)", "…", "64 / 10m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
