package api

import (
	"errors"
	"net/http"

	"github.com/MrWong99/glyphcmd/internal/session"
)

// stateResponse wraps a game state as {"state": ...}.
type stateResponse struct {
	State session.State `json:"state"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Get(r.Context(), r.PathValue("sessionID"))
	s.respondState(w, r, st, err)
}

func (s *Server) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	var p session.Position
	if !decode(w, r, &p) {
		return
	}
	st, err := session.UpdatePosition(r.Context(), s.sessions, r.PathValue("sessionID"), p)
	s.respondState(w, r, st, err)
}

func (s *Server) handleAddObject(w http.ResponseWriter, r *http.Request) {
	var o session.Object
	if !decode(w, r, &o) {
		return
	}
	if err := o.Validate(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	st, err := session.AddObject(r.Context(), s.sessions, r.PathValue("sessionID"), o)
	s.respondState(w, r, st, err)
}

func (s *Server) handleRemoveObject(w http.ResponseWriter, r *http.Request) {
	st, err := session.RemoveObject(r.Context(), s.sessions, r.PathValue("sessionID"), r.PathValue("objectID"))
	s.respondState(w, r, st, err)
}

func (s *Server) handleAddNPC(w http.ResponseWriter, r *http.Request) {
	var n session.NPC
	if !decode(w, r, &n) {
		return
	}
	if err := n.Validate(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	st, err := session.AddNPC(r.Context(), s.sessions, r.PathValue("sessionID"), n)
	s.respondState(w, r, st, err)
}

func (s *Server) handleRemoveNPC(w http.ResponseWriter, r *http.Request) {
	st, err := session.RemoveNPC(r.Context(), s.sessions, r.PathValue("sessionID"), r.PathValue("npcID"))
	s.respondState(w, r, st, err)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(r.Context(), r.PathValue("sessionID")); err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Game state cleared"})
}

func (s *Server) respondState(w http.ResponseWriter, r *http.Request, st session.State, err error) {
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: st})
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, session.ErrConflict) {
		status = http.StatusConflict
	}
	writeError(w, r, status, err.Error())
}
