// Package api serves the command recognizer and the per-session game state
// over a JSON HTTP API:
//
//	POST /api/commands/recognize                          recognize a command
//	GET  /api/game/state/{sessionID}                      read game state
//	POST /api/game/state/{sessionID}/update-position      move the player
//	POST /api/game/state/{sessionID}/add-object           add or replace an object
//	POST /api/game/state/{sessionID}/remove-object/{id}   remove an object
//	POST /api/game/state/{sessionID}/add-npc              add or replace an NPC
//	POST /api/game/state/{sessionID}/remove-npc/{id}      remove an NPC
//	POST /api/game/state/{sessionID}/clear                reset game state
//	GET  /api/health                                      liveness
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/ratelimit"
	"github.com/MrWong99/glyphcmd/internal/service"
	"github.com/MrWong99/glyphcmd/internal/session"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server holds the handlers of the JSON API.
type Server struct {
	commands *service.Commands
	sessions session.Store
	limiter  *ratelimit.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter throttles the recognize endpoint per client address.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New returns a Server. The session store of commands backs the game-state
// endpoints; when it is nil they are not registered.
func New(commands *service.Commands, opts ...Option) *Server {
	s := &Server{commands: commands, sessions: commands.Sessions()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/commands/recognize", s.limiter.Middleware("recognize", http.HandlerFunc(s.handleRecognize)))
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /{$}", handleRoot)

	if s.sessions == nil {
		return
	}
	mux.HandleFunc("GET /api/game/state/{sessionID}", s.handleGetState)
	mux.HandleFunc("POST /api/game/state/{sessionID}/update-position", s.handleUpdatePosition)
	mux.HandleFunc("POST /api/game/state/{sessionID}/add-object", s.handleAddObject)
	mux.HandleFunc("POST /api/game/state/{sessionID}/remove-object/{objectID}", s.handleRemoveObject)
	mux.HandleFunc("POST /api/game/state/{sessionID}/add-npc", s.handleAddNPC)
	mux.HandleFunc("POST /api/game/state/{sessionID}/remove-npc/{npcID}", s.handleRemoveNPC)
	mux.HandleFunc("POST /api/game/state/{sessionID}/clear", s.handleClear)
}

// Handler returns a standalone handler serving the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return CORS(mux)
}

// CORS allows any origin, method and header, and answers preflight requests
// directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if origin := r.Header.Get("Origin"); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
				h.Set("Access-Control-Allow-Headers", req)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "glyphcmd command recognition API is running"})
}

// errorBody is the JSON body of a 4xx/5xx response.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("api: request failed", "path", r.URL.Path, "status", status, "err", msg)
	}
	writeJSON(w, status, errorBody{Detail: msg})
}

// decode reads a JSON body into v. Unknown fields are allowed.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, r, http.StatusBadRequest, "request body is empty")
	default:
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return false
}

// writeJSON encodes v before touching the response so an unencodable value
// becomes a 500 instead of an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("api: encode response", "err", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Detail: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
