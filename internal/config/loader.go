package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults] to fields left empty.
const (
	DefaultListenAddr      = ":8000"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultPingInterval    = 20 * time.Second
	DefaultBackend         = "ollama"
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultOllamaModel     = "qwen3:0.6b"
	DefaultTemplatesDir    = "prompts"
	DefaultServiceName     = "glyphcmd"
	DefaultMCPPath         = "/mcp"
	DefaultSQLitePath      = "glyphcmd.db"
	DefaultCacheTTL        = 10 * time.Minute
)

// Environment variables consulted for an "ollama" primary backend whose
// base_url or model is left empty.
const (
	EnvOllamaHost  = "OLLAMA_HOST"
	EnvOllamaModel = "OLLAMA_MODEL"
)

// KnownBackends lists the backend names registered by the glyphcmd binary.
// Used by [Validate] to warn about unrecognised names.
var KnownBackends = []string{
	"ollama", "openai",
	"anyllm/openai", "anyllm/anthropic", "anyllm/gemini", "anyllm/ollama",
	"anyllm/deepseek", "anyllm/mistral", "anyllm/groq", "anyllm/llamacpp", "anyllm/llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown keys are rejected. An empty document yields the default
// configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.LogFormat == "" {
		s.LogFormat = LogFormatText
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.WSPingInterval == 0 {
		s.WSPingInterval = DefaultPingInterval
	}
	if s.RateLimit.RequestsPerSecond > 0 && s.RateLimit.Burst == 0 {
		s.RateLimit.Burst = max(1, int(s.RateLimit.RequestsPerSecond))
	}

	p := &cfg.Inference.Primary
	if p.Name == "" {
		p.Name = DefaultBackend
	}
	if p.Name == "ollama" {
		if p.BaseURL == "" {
			p.BaseURL = envOr(EnvOllamaHost, DefaultOllamaURL)
		}
		if p.Model == "" {
			p.Model = envOr(EnvOllamaModel, DefaultOllamaModel)
		}
	}

	rc := &cfg.Recognition
	if rc.Strategy == "" {
		rc.Strategy = StrategyTwoStage
	}
	if rc.TemplatesDir == "" {
		rc.TemplatesDir = DefaultTemplatesDir
	}
	if rc.ScanConcurrency == 0 {
		rc.ScanConcurrency = 5
	}
	if rc.CacheSize > 0 && rc.CacheTTL == 0 {
		rc.CacheTTL = DefaultCacheTTL
	}

	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = SessionsMemory
	}
	if cfg.Sessions.Backend == SessionsSQLite && cfg.Sessions.SQLitePath == "" {
		cfg.Sessions.SQLitePath = DefaultSQLitePath
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond < 0 || rl.Burst < 0 {
		errs = append(errs, errors.New("server.rate_limit values must not be negative"))
	}

	// Inference
	errs = append(errs, validateBackend("inference.primary", cfg.Inference.Primary)...)
	for i, fb := range cfg.Inference.Fallbacks {
		errs = append(errs, validateBackend(fmt.Sprintf("inference.fallbacks[%d]", i), fb)...)
	}
	if cfg.Inference.Timeout < 0 {
		errs = append(errs, fmt.Errorf("inference.timeout %s must not be negative", cfg.Inference.Timeout))
	}
	cb := cfg.Inference.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("inference.circuit_breaker values must not be negative"))
	}

	// Recognition
	rc := cfg.Recognition
	if rc.Strategy != "" && !rc.Strategy.IsValid() {
		errs = append(errs, fmt.Errorf("recognition.strategy %q is invalid; valid values: two_stage, scan", rc.Strategy))
	}
	if rc.ReloadInterval < 0 {
		errs = append(errs, fmt.Errorf("recognition.reload_interval %s must not be negative", rc.ReloadInterval))
	}
	if rc.FuzzyThreshold < 0 || rc.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("recognition.fuzzy_threshold %.2f is out of range [0, 1]", rc.FuzzyThreshold))
	}
	if rc.FuzzyThreshold > 0 && !rc.FuzzyVerbs {
		slog.Warn("recognition.fuzzy_threshold is set but recognition.fuzzy_verbs is disabled")
	}
	if rc.ScanConcurrency < 0 {
		errs = append(errs, fmt.Errorf("recognition.scan_concurrency %d must not be negative", rc.ScanConcurrency))
	}
	if rc.CacheSize < 0 || rc.CacheTTL < 0 {
		errs = append(errs, errors.New("recognition.cache_size and recognition.cache_ttl must not be negative"))
	}

	// Sessions
	if cfg.Sessions.Backend != "" && !cfg.Sessions.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("sessions.backend %q is invalid; valid values: memory, postgres, sqlite", cfg.Sessions.Backend))
	}
	if cfg.Sessions.Backend == SessionsPostgres && cfg.Sessions.PostgresDSN == "" {
		errs = append(errs, errors.New("sessions.postgres_dsn is required when sessions.backend is postgres"))
	}

	// MCP
	if cfg.MCP.Enabled && !strings.HasPrefix(cfg.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	return errors.Join(errs...)
}

func validateBackend(prefix string, b BackendEntry) []error {
	if b.Name == "" {
		return []error{fmt.Errorf("%s.name is required", prefix)}
	}
	if b.BaseURL != "" && !strings.HasPrefix(b.BaseURL, "http://") && !strings.HasPrefix(b.BaseURL, "https://") {
		return []error{fmt.Errorf("%s.base_url %q must start with http:// or https://", prefix, b.BaseURL)}
	}
	if !slices.Contains(KnownBackends, b.Name) {
		slog.Warn("unknown inference backend name; may be a typo or a third-party registration",
			"field", prefix,
			"name", b.Name,
			"known", KnownBackends,
		)
	}
	return nil
}
