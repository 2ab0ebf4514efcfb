// Package app wires all glyphcmd subsystems into a running server.
//
// The App struct owns the full lifecycle: New loads templates, builds the
// inference chain and the recognizer, opens the session store and mounts
// every transport on one mux; Run serves HTTP until the context ends; and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithInferenceClient,
// WithSessionStore, WithMetrics). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glyphcmd/internal/answer"
	"github.com/MrWong99/glyphcmd/internal/api"
	"github.com/MrWong99/glyphcmd/internal/config"
	"github.com/MrWong99/glyphcmd/internal/health"
	"github.com/MrWong99/glyphcmd/internal/inference"
	"github.com/MrWong99/glyphcmd/internal/mcpserver"
	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/prompt"
	"github.com/MrWong99/glyphcmd/internal/ratelimit"
	"github.com/MrWong99/glyphcmd/internal/recognizer"
	"github.com/MrWong99/glyphcmd/internal/resilience"
	"github.com/MrWong99/glyphcmd/internal/service"
	"github.com/MrWong99/glyphcmd/internal/session"
	"github.com/MrWong99/glyphcmd/internal/ws"
)

// readHeaderTimeout bounds how long a client may take to send request
// headers.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	version  string

	metrics        *observe.Metrics
	metricsHandler http.Handler
	logLevel       *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	templates  *prompt.Store
	client     inference.Client
	fallback   *resilience.InferenceFallback
	recognizer *recognizer.Swap
	sessions   session.Store
	commands   *service.Commands
	checkers   []health.Checker
	handler    http.Handler

	// mu guards cfg after New returns.
	mu sync.Mutex

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithInferenceClient uses c as the completion backend instead of creating
// the configured backends through the registry. No fallback group is built
// around c.
func WithInferenceClient(c inference.Client) Option {
	return func(a *App) { a.client = c }
}

// WithSessionStore injects a game-state store instead of creating one from
// config.
func WithSessionStore(s session.Store) Option {
	return func(a *App) { a.sessions = s }
}

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics, typically
// [observe.Telemetry.MetricsHandler]. Without it the default Prometheus
// registry is served.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogLevel lets [App.ApplyConfig] change the log level of a running
// server through lv.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithVersion sets the version reported by the MCP endpoint.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. reg resolves the
// configured inference backends; it may be nil when WithInferenceClient is
// given.
//
// New performs all initialisation synchronously. On error, everything that
// was already opened is closed again.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	own := *cfg
	a := &App{
		cfg:      &own,
		registry: reg,
		version:  "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"templates", a.initTemplates},
		{"inference", a.initInference},
		{"recognizer", a.initRecognizer},
		{"sessions", a.initSessions},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			a.closeAll()
			return nil, fmt.Errorf("app: init %s: %w", step.name, err)
		}
	}

	a.commands = service.New(a.recognizer, a.sessions)
	a.handler = a.routes()
	return a, nil
}

// initTemplates loads the template directory and starts the hot-reload
// watcher when a reload interval is configured.
func (a *App) initTemplates(context.Context) error {
	rc := a.cfg.Recognition
	store, err := prompt.NewStore(rc.TemplatesDir, prompt.WithWarningHook(func(w prompt.LoadWarning) {
		slog.Warn("template load warning", "warning", w.String())
		a.metrics.RecordTemplateWarning(context.Background(), string(w.Kind))
	}))
	if err != nil {
		return err
	}
	a.templates = store
	slog.Info("templates loaded", "dir", rc.TemplatesDir, "categories", store.Current().Categories())

	if rc.ReloadInterval > 0 {
		w := prompt.NewWatcher(store, rc.ReloadInterval)
		a.closers = append(a.closers, func() error {
			w.Stop()
			return nil
		})
	}
	a.checkers = append(a.checkers, health.Templates(store))
	return nil
}

// initInference builds primary → fallbacks, each bounded by the configured
// timeout and instrumented, behind per-backend circuit breakers.
func (a *App) initInference(context.Context) error {
	if a.client != nil {
		return nil
	}
	if a.registry == nil {
		return errors.New("no backend registry")
	}

	ic := a.cfg.Inference
	primary, err := a.backend(ic.Primary)
	if err != nil {
		return err
	}
	a.fallback = resilience.NewInferenceFallback(primary, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  ic.CircuitBreaker.MaxFailures,
			ResetTimeout: ic.CircuitBreaker.ResetTimeout,
			HalfOpenMax:  ic.CircuitBreaker.HalfOpenMax,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("inference circuit breaker", "backend", name, "from", from.String(), "to", to.String())
			},
		},
	})
	for _, entry := range ic.Fallbacks {
		c, err := a.backend(entry)
		if err != nil {
			return err
		}
		a.fallback.AddFallback(c)
	}

	a.client = a.fallback
	a.checkers = append(a.checkers, health.Inference(a.fallback.Available))
	slog.Info("inference ready", "backends", a.fallback.Name(), "timeout", ic.Timeout)
	return nil
}

func (a *App) backend(entry config.BackendEntry) (inference.Client, error) {
	c, err := a.registry.Create(entry)
	if err != nil {
		return nil, err
	}
	return inference.Instrument(inference.WithTimeout(c, a.cfg.Inference.Timeout), a.metrics), nil
}

func (a *App) initRecognizer(context.Context) error {
	r, err := a.buildRecognizer(a.cfg.Recognition)
	if err != nil {
		return err
	}
	a.recognizer = recognizer.NewSwap(r)
	return nil
}

// buildRecognizer creates the recognizer for rc over the app's templates and
// inference client.
func (a *App) buildRecognizer(rc config.RecognitionConfig) (recognizer.Recognizer, error) {
	var popts []answer.Option
	if rc.FuzzyVerbs {
		popts = append(popts, answer.WithFuzzyVerbs(rc.FuzzyThreshold))
	}
	r, err := recognizer.New(recognizer.Strategy(rc.Strategy), a.templates, a.client,
		recognizer.WithParser(answer.NewParser(popts...)),
		recognizer.WithMetrics(a.metrics),
		recognizer.WithConcurrency(rc.ScanConcurrency),
	)
	if err != nil {
		return nil, err
	}
	if rc.SnapToVocabulary {
		r = recognizer.SnapToVocabulary(r)
	}
	return recognizer.Cached(r, rc.CacheSize, rc.CacheTTL,
		recognizer.WithCacheMetrics(a.metrics),
		recognizer.WithTemplateStore(a.templates),
	), nil
}

// initSessions opens the configured game-state store. An injected store
// wins over the config.
func (a *App) initSessions(ctx context.Context) error {
	if a.sessions != nil {
		return nil
	}
	sc := a.cfg.Sessions
	switch sc.Backend {
	case config.SessionsPostgres:
		return a.initPostgres(ctx, sc.PostgresDSN)
	case config.SessionsSQLite:
		store, err := session.OpenSQLite(ctx, sc.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		a.sessions = store
		a.checkers = append(a.checkers, health.Checker{Name: "sessions", Check: store.Ping})
		slog.Info("session store ready", "backend", "sqlite", "path", sc.SQLitePath)
	default:
		a.sessions = session.NewMemStore()
	}
	return nil
}

func (a *App) initPostgres(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	store := session.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.sessions = store
	a.checkers = append(a.checkers, health.Checker{Name: "sessions", Check: store.Ping})
	slog.Info("session store ready", "backend", "postgres")
	return nil
}

// routes mounts every transport on one mux.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	rl := a.cfg.Server.RateLimit
	limiter := ratelimit.New(rl.RequestsPerSecond, rl.Burst, ratelimit.WithMetrics(a.metrics))

	api.New(a.commands, api.WithRateLimiter(limiter)).Register(mux)
	ws.New(a.commands,
		ws.WithPingInterval(a.cfg.Server.WSPingInterval),
		ws.WithMetrics(a.metrics),
		ws.WithRateLimiter(limiter),
	).Register(mux)
	health.New(a.cfg.Telemetry.ServiceName, a.checkers...).Register(mux)

	if a.cfg.Telemetry.Metrics() {
		h := a.metricsHandler
		if h == nil {
			h = promhttp.Handler()
		}
		mux.Handle("GET /metrics", h)
	}
	if a.cfg.MCP.Enabled {
		mux.Handle(a.cfg.MCP.Path, mcpserver.Handler(mcpserver.New(a.commands, a.version)))
	}

	return observe.Middleware(a.metrics)(api.CORS(mux))
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Commands returns the recognition service.
func (a *App) Commands() *service.Commands { return a.commands }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests for at most server.shutdown_timeout. It
// returns nil after a clean drain.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is like Run but accepts connections on ln.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: drain http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// ─── Config reload ───────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of next: the log level and
// the recognition settings that do not need new templates (strategy,
// fuzzy verbs, scan concurrency, vocabulary snapping and the result cache).
// A rebuilt recognizer starts with an empty cache. Everything else is logged as requiring a
// restart and keeps its running value.
func (a *App) ApplyConfig(next *config.Config) config.ConfigDiff {
	a.mu.Lock()
	defer a.mu.Unlock()

	d := config.Diff(a.cfg, next)
	if d.Empty() {
		return d
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.RecognitionChanged {
		rc := a.cfg.Recognition
		rc.Strategy = next.Recognition.Strategy
		rc.FuzzyVerbs = next.Recognition.FuzzyVerbs
		rc.FuzzyThreshold = next.Recognition.FuzzyThreshold
		rc.ScanConcurrency = next.Recognition.ScanConcurrency
		rc.SnapToVocabulary = next.Recognition.SnapToVocabulary
		rc.CacheSize, rc.CacheTTL = next.Recognition.CacheSize, next.Recognition.CacheTTL
		r, err := a.buildRecognizer(rc)
		if err != nil {
			slog.Error("recognition config rejected, keeping current recognizer", "err", err)
		} else {
			a.recognizer.Store(r)
			a.cfg.Recognition = rc
			slog.Info("recognizer rebuilt", "strategy", rc.Strategy, "fuzzy_verbs", rc.FuzzyVerbs)
		}
	}
	if d.LogLevelChanged {
		a.cfg.Server.LogLevel = next.Server.LogLevel
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
	return d
}

// SlogLevel converts a config log level to its slog equivalent. Unknown
// levels map to info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers collected so far after a failed New.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
	a.closers = nil
}
