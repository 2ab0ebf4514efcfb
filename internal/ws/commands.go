package ws

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

const endpointCommands = "commands"

// commandReply is sent for every transcript frame.
type commandReply struct {
	Transcription string         `json:"transcription"`
	Command       command.Result `json:"command"`
}

// errorReply is sent for frames that cannot be processed.
type errorReply struct {
	Error string `json:"error"`
}

// transcriptFrame is the JSON form of a transcript frame.
type transcriptFrame struct {
	Text *string `json:"text"`
}

func (h *Handler) serveCommands(w http.ResponseWriter, r *http.Request) {
	c, err := h.accept(w, r, endpointCommands)
	if err != nil {
		observe.Logger(r.Context()).Warn("ws: accept failed", "endpoint", endpointCommands, "err", err)
		return
	}
	defer c.done()

	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.disconnected(err)
			return
		}

		var reply any
		if typ == websocket.MessageBinary {
			reply = errorReply{Error: "binary audio frames are not supported; send transcripts as text frames"}
		} else if text, ok := transcript(data); !ok {
			reply = errorReply{Error: `expected plain text or {"text": "..."}`}
		} else if text == "" {
			continue
		} else if !h.limiter.Allow(c.addr) {
			h.limiter.Reject(c.ctx, "ws_commands")
			reply = errorReply{Error: "rate limit exceeded"}
		} else {
			reply = commandReply{
				Transcription: text,
				Command:       h.commands.ForSession(c.ctx, c.id, text),
			}
		}

		if err := c.write(reply); err != nil {
			c.disconnected(err)
			return
		}
	}
}

// transcript extracts the utterance of a text frame: either the frame
// itself or the "text" field of a JSON object.
func transcript(data []byte) (string, bool) {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "{") {
		var f transcriptFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Text == nil {
			return "", false
		}
		return strings.TrimSpace(*f.Text), true
	}
	return s, true
}
