// Command glyphcmd is the main entry point for the glyphcmd command
// recognition server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/glyphcmd/internal/app"
	"github.com/MrWong99/glyphcmd/internal/config"
	"github.com/MrWong99/glyphcmd/internal/inference"
	"github.com/MrWong99/glyphcmd/internal/inference/ollama"
	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/pkg/provider/llm"
	"github.com/MrWong99/glyphcmd/pkg/provider/llm/anyllm"
	"github.com/MrWong99/glyphcmd/pkg/provider/llm/openai"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// checkTimeout bounds the startup reachability check of each backend.
const checkTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "reload log level and recognition settings when the config file changes")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("glyphcmd", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "glyphcmd: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "glyphcmd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(os.Stderr, &level, cfg.Server.LogFormat))

	slog.Info("glyphcmd starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(tctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	checks := registerBuiltinBackends(reg, metrics)

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, reg,
		app.WithMetrics(metrics),
		app.WithMetricsHandler(telemetry.MetricsHandler()),
		app.WithLogLevel(&level),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	checks.run(ctx)

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *watch {
		w, err := config.NewWatcher(*configPath, func(next *config.Config, _ config.ConfigDiff) {
			application.ApplyConfig(next)
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	printStartupSummary(os.Stdout, cfg)
	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		_ = application.Shutdown(context.Background())
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// reachabilityChecker is implemented by backends that can check reachability.
type reachabilityChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// checkSet collects the backends created through the registry that can be
// pinged at startup.
type checkSet struct {
	mu      sync.Mutex
	targets []reachabilityChecker
}

func (p *checkSet) add(t reachabilityChecker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, t)
}

// run pings every collected backend once. Failures are only logged; the
// circuit breakers take over once traffic arrives.
func (p *checkSet) run(ctx context.Context) {
	p.mu.Lock()
	targets := p.targets
	p.mu.Unlock()
	for _, t := range targets {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := t.Ping(pctx)
		cancel()
		if err != nil {
			slog.Warn("inference backend not reachable", "backend", t.Name(), "err", err)
			continue
		}
		slog.Info("inference backend reachable", "backend", t.Name())
	}
}

// registerBuiltinBackends wires all built-in backend factories into reg.
// Each factory receives a config.BackendEntry and constructs the client
// from the real implementation packages.
func registerBuiltinBackends(reg *config.Registry, metrics *observe.Metrics) *checkSet {
	checks := &checkSet{}
	usage := inference.WithUsageHook(func(backend string, u llm.Usage) {
		metrics.RecordTokens(context.Background(), backend, u.PromptTokens, u.CompletionTokens)
	})

	// ollama speaks the native /api/generate endpoint directly.
	reg.Register("ollama", func(entry config.BackendEntry) (inference.Client, error) {
		c, err := ollama.New(entry.BaseURL, entry.Model, ollama.WithOptions(entry.Options))
		if err != nil {
			return nil, err
		}
		checks.add(c)
		return c, nil
	})

	// openai uses the official SDK; any OpenAI-compatible server works with
	// base_url.
	reg.Register("openai", func(entry config.BackendEntry) (inference.Client, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if n, ok := optInt(entry.Options, "max_retries"); ok {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		p, err := openai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return inference.FromLLM(p, append(llmOptions(entry), usage)...), nil
	})

	// anyllm/<provider> share the same pattern: optional APIKey + optional
	// BaseURL.
	for _, providerName := range anyllm.Backends {
		reg.Register("anyllm/"+providerName, func(entry config.BackendEntry) (inference.Client, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return inference.FromLLM(p, append(llmOptions(entry), usage)...), nil
		})
	}
	return checks
}

// llmOptions maps the shared chat-model options of a backend entry.
func llmOptions(entry config.BackendEntry) []inference.LLMOption {
	var opts []inference.LLMOption
	if s := optString(entry.Options, "system_prompt"); s != "" {
		opts = append(opts, inference.WithSystemPrompt(s))
	}
	if f, ok := optFloat(entry.Options, "temperature"); ok {
		opts = append(opts, inference.WithTemperature(f))
	}
	if n, ok := optInt(entry.Options, "max_tokens"); ok {
		opts = append(opts, inference.WithMaxTokens(n))
	}
	return opts
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        glyphcmd startup summary       ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "Backend", backendLabel(cfg.Inference.Primary))
	printRow(w, "Fallbacks", fmt.Sprint(len(cfg.Inference.Fallbacks)))
	printRow(w, "Strategy", string(cfg.Recognition.Strategy))
	printRow(w, "Templates", cfg.Recognition.TemplatesDir)
	printRow(w, "Sessions", string(cfg.Sessions.Backend))
	if cfg.Recognition.CacheSize > 0 {
		printRow(w, "Cache", fmt.Sprintf("%d / %s", cfg.Recognition.CacheSize, cfg.Recognition.CacheTTL))
	} else {
		printRow(w, "Cache", "(disabled)")
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		printRow(w, "Rate limit", fmt.Sprintf("%g/s burst %d", rl.RequestsPerSecond, rl.Burst))
	} else {
		printRow(w, "Rate limit", "(disabled)")
	}
	if cfg.MCP.Enabled {
		printRow(w, "MCP", cfg.MCP.Path)
	} else {
		printRow(w, "MCP", "(disabled)")
	}
	printRow(w, "Listen addr", cfg.Server.ListenAddr)
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func backendLabel(b config.BackendEntry) string {
	if b.Model == "" {
		return b.Name
	}
	return b.Name + " / " + b.Model
}

func printRow(w io.Writer, key, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", key, value)
}

// ── Logging ───────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level *slog.LevelVar, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ── Option helpers ────────────────────────────────────────────────────────────

func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optFloat reads a numeric option. YAML decodes integers as int, so both
// forms are accepted.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func optInt(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
