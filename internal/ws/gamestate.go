package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/session"
)

const endpointGameState = "game_state"

// Game-state actions.
const (
	ActionUpdatePosition = "update_position"
	ActionAddObject      = "add_object"
	ActionRemoveObject   = "remove_object"
	ActionAddNPC         = "add_npc"
	ActionRemoveNPC      = "remove_npc"
	ActionGetState       = "get_state"
	ActionClearState     = "clear_state"
)

// stateMessage is one game-state action. Only the field matching Action is
// read; an action whose field is missing is acknowledged without effect.
type stateMessage struct {
	Action   string            `json:"action"`
	Position *session.Position `json:"position"`
	Object   *session.Object   `json:"object"`
	ObjectID *string           `json:"object_id"`
	NPC      *session.NPC      `json:"npc"`
	NPCID    *string           `json:"npc_id"`
}

// ack acknowledges every message.
type ack struct {
	Status string `json:"status"`
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

type stateReply struct {
	State session.State `json:"state"`
}

var errNotObject = errors.New("message must be a JSON object")

func (h *Handler) serveGameState(w http.ResponseWriter, r *http.Request) {
	c, err := h.accept(w, r, endpointGameState)
	if err != nil {
		observe.Logger(r.Context()).Warn("ws: accept failed", "endpoint", endpointGameState, "err", err)
		return
	}
	defer c.done()

	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.disconnected(err)
			return
		}

		reply := ack{Status: "ok", Action: "unknown"}
		var msg stateMessage
		switch {
		case typ != websocket.MessageText:
			reply.Status, reply.Error = "error", errNotObject.Error()
		case json.Unmarshal(data, &msg) != nil:
			reply.Status, reply.Error = "error", errNotObject.Error()
		default:
			if msg.Action != "" {
				reply.Action = msg.Action
			}
			if err := h.apply(c, msg); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				reply.Status, reply.Error = "error", err.Error()
				c.log.Warn("ws: game-state action failed", "action", msg.Action, "err", err)
			}
		}

		if err := c.write(reply); err != nil {
			c.disconnected(err)
			return
		}
	}
}

// apply performs one action. get_state writes the state frame itself,
// before the acknowledgement.
func (h *Handler) apply(c *client, msg stateMessage) error {
	ctx, id := c.ctx, c.id
	var err error
	switch msg.Action {
	case ActionUpdatePosition:
		if msg.Position != nil {
			_, err = session.UpdatePosition(ctx, h.sessions, id, *msg.Position)
		}
	case ActionAddObject:
		if msg.Object != nil {
			if err = msg.Object.Validate(); err == nil {
				_, err = session.AddObject(ctx, h.sessions, id, *msg.Object)
			}
		}
	case ActionRemoveObject:
		if msg.ObjectID != nil {
			_, err = session.RemoveObject(ctx, h.sessions, id, *msg.ObjectID)
		}
	case ActionAddNPC:
		if msg.NPC != nil {
			if err = msg.NPC.Validate(); err == nil {
				_, err = session.AddNPC(ctx, h.sessions, id, *msg.NPC)
			}
		}
	case ActionRemoveNPC:
		if msg.NPCID != nil {
			_, err = session.RemoveNPC(ctx, h.sessions, id, *msg.NPCID)
		}
	case ActionGetState:
		var st session.State
		if st, err = h.sessions.Get(ctx, id); err == nil {
			if werr := c.write(stateReply{State: st}); werr != nil {
				return fmt.Errorf("write state: %w", werr)
			}
		}
	case ActionClearState:
		err = h.sessions.Clear(ctx, id)
	}
	return err
}
