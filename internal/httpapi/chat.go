package httpapi

import (
	"io"
	"net/http"

	"github.com/antoniostano/parley/internal/dialogue"
	"github.com/antoniostano/parley/internal/protocol"
)

const maxTurnBodyBytes = 1 << 20

// handleChat relays one turn to the dialogue upstream. It always answers 200
// with a JSON payload: failures become synthesized fallback responses.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxTurnBodyBytes))
	if err == nil {
		var req protocol.TurnRequest
		req, err = protocol.ParseTurnRequest(raw)
		if err == nil {
			s.relay(w, r, req)
			return
		}
	}

	// Only unreadable or syntactically invalid bodies get here. Their
	// end_session flag cannot be read, so the mid-session fallback applies.
	s.logger.Warn().Err(err).Msg("rejecting malformed turn request with fallback payload")
	s.metrics.ObserveGatewayFailure("decode", false)
	respondJSON(w, http.StatusOK, dialogue.Fallback(protocol.TurnRequest{}, err))
}

func (s *Server) relay(w http.ResponseWriter, r *http.Request, req protocol.TurnRequest) {
	resp := s.gateway.Forward(r.Context(), req)
	if len(resp.Raw) == 0 {
		respondJSON(w, http.StatusOK, resp)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Raw)
}
