// Package service is the transport-independent front door of the command
// recognizer. It resolves the vocabulary a request runs against (a stored
// session or an inline game state), runs the recognizer and applies the
// near-miss override. The HTTP API, the WebSocket endpoints and the MCP tool
// all go through it.
package service

import (
	"context"
	"log/slog"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/recognizer"
	"github.com/MrWong99/glyphcmd/internal/session"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Request is one recognition request.
type Request struct {
	Text string

	// GameState is an inline vocabulary. Ignored when SessionID is set.
	GameState *command.Vocabulary

	// SessionID selects a stored game state.
	SessionID string

	// ReturnUnrecognized reports a near-miss (a result with a command and a
	// positive confidence) as recognized.
	ReturnUnrecognized bool
}

// Commands serves recognition requests.
type Commands struct {
	rec      recognizer.Recognizer
	sessions session.Store
}

// New returns a Commands using rec. sessions may be nil, in which case
// SessionID is ignored.
func New(rec recognizer.Recognizer, sessions session.Store) *Commands {
	return &Commands{rec: rec, sessions: sessions}
}

// Sessions returns the session store, which may be nil.
func (c *Commands) Sessions() session.Store { return c.sessions }

// Recognize resolves the vocabulary of req and recognizes req.Text. Like the
// recognizer it never fails: a session lookup error is reported in the
// result.
func (c *Commands) Recognize(ctx context.Context, req Request) command.Result {
	log := observe.Logger(ctx)

	vocab, err := c.vocabulary(ctx, req)
	if err != nil {
		log.Error("service: resolve game state", "session_id", req.SessionID, "err", err)
		return command.Failed(err.Error(), 0, nil)
	}

	res := c.rec.Recognize(ctx, req.Text, vocab)
	if !res.Recognized && res.Command != nil && res.Confidence > 0 {
		log.Info("service: near-miss command",
			slog.String("category", string(res.Command.Category)),
			slog.Float64("confidence", res.Confidence),
			slog.Bool("forced", req.ReturnUnrecognized),
		)
		if req.ReturnUnrecognized {
			res.Recognized = true
		}
	}
	return res
}

// ForSession recognizes text against the stored game state of sessionID.
func (c *Commands) ForSession(ctx context.Context, sessionID, text string) command.Result {
	return c.Recognize(ctx, Request{Text: text, SessionID: sessionID})
}

func (c *Commands) vocabulary(ctx context.Context, req Request) (command.Vocabulary, error) {
	switch {
	case req.SessionID != "" && c.sessions != nil:
		return session.ContextFor(ctx, c.sessions, req.SessionID)
	case req.GameState != nil:
		return *req.GameState, nil
	}
	return command.Vocabulary{}, nil
}
