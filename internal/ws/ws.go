// Package ws exposes the command recognizer and the game-state store over
// WebSocket connections (github.com/coder/websocket).
//
//	/ws/commands/{clientID}    text frames carry transcripts; every frame is
//	                           answered with {transcription, command}
//	/ws/game-state/{clientID}  JSON actions mutating the client's game state;
//	                           every message is acknowledged
//
// The client ID doubles as the session ID, so commands recognised on one
// socket see the state written through the other. Every accepted connection
// additionally gets a random conn_id that tags its log lines, since one
// client may reconnect or hold several sockets at once.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/ratelimit"
	"github.com/MrWong99/glyphcmd/internal/service"
	"github.com/MrWong99/glyphcmd/internal/session"
)

const (
	// readLimit caps a single incoming message.
	readLimit = 64 << 10

	// writeTimeout bounds every outgoing frame.
	writeTimeout = 10 * time.Second

	// DefaultPingInterval is used when no interval is configured.
	DefaultPingInterval = 20 * time.Second
)

// Handler serves the WebSocket endpoints.
type Handler struct {
	commands *service.Commands
	sessions session.Store
	metrics  *observe.Metrics
	limiter  *ratelimit.Limiter

	pingInterval   time.Duration
	originPatterns []string
}

// Option configures a [Handler].
type Option func(*Handler)

// WithPingInterval sets how often clients are pinged. A ping that is not
// answered within the interval closes the connection. Non-positive values
// disable pinging.
func WithPingInterval(d time.Duration) Option {
	return func(h *Handler) { h.pingInterval = d }
}

// WithOriginPatterns restricts the accepted Origin hosts. The default
// accepts any origin.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) { h.originPatterns = patterns }
}

// WithMetrics records active connections into m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRateLimiter throttles transcript frames per client address. Frames
// beyond the budget are answered with an error and not recognised.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// New returns a Handler backed by commands and its session store.
func New(commands *service.Commands, opts ...Option) *Handler {
	h := &Handler{
		commands:       commands,
		sessions:       commands.Sessions(),
		pingInterval:   DefaultPingInterval,
		originPatterns: []string{"*"},
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Register adds the WebSocket routes to mux. The game-state route is only
// registered when a session store is configured.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/commands/{clientID}", h.serveCommands)
	if h.sessions != nil {
		mux.HandleFunc("GET /ws/game-state/{clientID}", h.serveGameState)
	}
}

// client is one accepted connection.
type client struct {
	conn   *websocket.Conn
	ctx    context.Context
	id     string
	connID string
	addr   string
	log    *slog.Logger
	done   func()
}

// accept upgrades the request and starts the ping loop. client.done must be
// called when the connection is finished.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request, endpoint string) (*client, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)

	c := &client{
		conn:   conn,
		id:     r.PathValue("clientID"),
		connID: uuid.NewString(),
		addr:   ratelimit.ClientIP(r),
	}
	c.log = observe.Logger(r.Context()).With("endpoint", endpoint, "client_id", c.id, "conn_id", c.connID)

	ctx, cancel := context.WithCancel(r.Context())
	c.ctx = ctx
	closed := h.metrics.ConnectionOpened(ctx, endpoint)
	if h.pingInterval > 0 {
		go h.keepAlive(c)
	}
	c.done = func() {
		cancel()
		closed()
		conn.CloseNow()
	}
	c.log.Info("ws: client connected", "remote", c.addr)
	return c, nil
}

// keepAlive pings conn until ctx is done and closes conn when a ping goes
// unanswered.
func (h *Handler) keepAlive(c *client) {
	ctx, conn := c.ctx, c.conn
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, h.pingInterval)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Info("ws: ping failed, closing", "err", err)
					conn.Close(websocket.StatusPolicyViolation, "ping timeout")
				}
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (c *client) write(v any) error {
	return writeJSON(c.ctx, c.conn, v)
}

// closedNormally reports whether err ends a read loop without being worth an
// error log.
func closedNormally(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}

func (c *client) disconnected(err error) {
	if closedNormally(err) {
		c.log.Info("ws: client disconnected")
		return
	}
	c.log.Warn("ws: connection ended", slog.Any("err", err))
}
