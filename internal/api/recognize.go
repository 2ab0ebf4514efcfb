package api

import (
	"net/http"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/service"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

// recognizeRequest is the JSON body of POST /api/commands/recognize.
type recognizeRequest struct {
	Text               *string             `json:"text"`
	GameState          *command.Vocabulary `json:"game_state"`
	SessionID          string              `json:"session_id"`
	ReturnUnrecognized bool                `json:"return_unrecognized"`
}

// handleRecognize answers with the recognition result. Recognition failures
// are reported in the result body with status 200; only malformed requests
// get a 4xx.
func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, r, http.StatusUnprocessableEntity, "text is required")
		return
	}

	observe.Logger(r.Context()).Info("api: recognize", "text", *req.Text, "session_id", req.SessionID)
	res := s.commands.Recognize(r.Context(), service.Request{
		Text:               *req.Text,
		GameState:          req.GameState,
		SessionID:          req.SessionID,
		ReturnUnrecognized: req.ReturnUnrecognized,
	})
	writeJSON(w, http.StatusOK, res)
}
