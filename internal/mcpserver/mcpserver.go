// Package mcpserver exposes command recognition as MCP tools over the
// streamable HTTP transport of github.com/modelcontextprotocol/go-sdk.
//
// Tools:
//
//	recognize_command  turn an utterance into a structured game command
//	get_game_state     read the stored game state of a session (only when a
//	                   session store is configured)
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/service"
	"github.com/MrWong99/glyphcmd/internal/session"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Tool names.
const (
	ToolRecognize = "recognize_command"
	ToolGameState = "get_game_state"
)

// RecognizeInput is the argument object of recognize_command.
type RecognizeInput struct {
	Text      string              `json:"text" jsonschema:"the player's utterance"`
	SessionID string              `json:"session_id,omitempty" jsonschema:"use the stored game state of this session"`
	GameState *command.Vocabulary `json:"game_state,omitempty" jsonschema:"inline vocabulary used when no session_id is given"`
}

// RecognizeOutput mirrors the JSON shape of [command.Result].
type RecognizeOutput struct {
	Recognized bool           `json:"recognized"`
	Command    map[string]any `json:"command,omitempty"`
	Confidence float64        `json:"confidence"`
	Error      string         `json:"error,omitempty"`
}

// GameStateInput is the argument object of get_game_state.
type GameStateInput struct {
	SessionID string `json:"session_id" jsonschema:"the session to read"`
}

// GameStateOutput wraps the state of one session.
type GameStateOutput struct {
	State session.State `json:"state"`
}

var errEmptyText = errors.New("text must not be empty")

// New builds an MCP server with the recognition tools registered.
func New(commands *service.Commands, version string) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: "glyphcmd", Version: version}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolRecognize,
		Description: "Recognize a spoken or typed game command and return it as structured data (category, action, target, ...).",
	}, recognizeHandler(commands))

	if store := commands.Sessions(); store != nil {
		mcp.AddTool(s, &mcp.Tool{
			Name:        ToolGameState,
			Description: "Return the game state (position, objects, NPCs, verbs) stored for a session.",
		}, gameStateHandler(store))
	}
	return s
}

// Handler returns the streamable HTTP handler serving srv.
func Handler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}

func recognizeHandler(commands *service.Commands) mcp.ToolHandlerFor[RecognizeInput, RecognizeOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in RecognizeInput) (*mcp.CallToolResult, RecognizeOutput, error) {
		if strings.TrimSpace(in.Text) == "" {
			return nil, RecognizeOutput{}, errEmptyText
		}
		res := commands.Recognize(ctx, service.Request{
			Text:      in.Text,
			GameState: in.GameState,
			SessionID: in.SessionID,
		})
		out, err := toOutput(res)
		if err != nil {
			return nil, RecognizeOutput{}, err
		}
		observe.Logger(ctx).Debug("mcp: recognize_command", "recognized", out.Recognized, "confidence", out.Confidence)
		return nil, out, nil
	}
}

func gameStateHandler(store session.Store) mcp.ToolHandlerFor[GameStateInput, GameStateOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in GameStateInput) (*mcp.CallToolResult, GameStateOutput, error) {
		if in.SessionID == "" {
			return nil, GameStateOutput{}, errors.New("session_id must not be empty")
		}
		st, err := store.Get(ctx, in.SessionID)
		if err != nil {
			return nil, GameStateOutput{}, fmt.Errorf("get game state: %w", err)
		}
		return nil, GameStateOutput{State: st}, nil
	}
}

func toOutput(res command.Result) (RecognizeOutput, error) {
	out := RecognizeOutput{
		Recognized: res.Recognized,
		Confidence: res.Confidence,
		Error:      res.Error,
	}
	if res.Command == nil {
		return out, nil
	}
	data, err := json.Marshal(res.Command)
	if err != nil {
		return RecognizeOutput{}, fmt.Errorf("encode command: %w", err)
	}
	if err := json.Unmarshal(data, &out.Command); err != nil {
		return RecognizeOutput{}, fmt.Errorf("encode command: %w", err)
	}
	return out, nil
}
