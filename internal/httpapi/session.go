package httpapi

import (
	"errors"
	"net/http"

	"github.com/antoniostano/parley/internal/session"
	"github.com/antoniostano/parley/internal/transcript"
)

type turnResponse struct {
	Session    session.Snapshot   `json:"session"`
	Transcript []transcript.Entry `json:"transcript"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id, err := s.controller.TryCreate()
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID: id,
		State:     session.StateActive,
		BELimit:   s.controller.BELimit(),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req session.MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	if err := s.controller.SendMessage(r.Context(), req.Text); err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondTurn(w)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.End(r.Context()); err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondTurn(w)
}

func (s *Server) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	var req session.DraftRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	s.controller.SetDraft(req.Text)
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) respondTurn(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, turnResponse{
		Session:    s.controller.Snapshot(),
		Transcript: s.controller.Transcript().Entries(),
	})
}

func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		respondError(w, http.StatusBadRequest, "empty_input", err.Error())
	case errors.Is(err, session.ErrNoSession):
		respondError(w, http.StatusConflict, "no_session", err.Error())
	case errors.Is(err, session.ErrTurnInFlight):
		respondError(w, http.StatusConflict, "turn_in_flight", err.Error())
	case errors.Is(err, session.ErrSessionActive):
		respondError(w, http.StatusConflict, "session_active", err.Error())
	default:
		s.logger.Error().Err(err).Msg("session operation failed")
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
