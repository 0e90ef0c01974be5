package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/parley/internal/journal"
)

const (
	defaultJournalLimit = 100
	maxJournalLimit     = 1000
)

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotFound, "journal_disabled", "journal is not configured")
		return
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session id is required")
		return
	}

	limit := defaultJournalLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxJournalLimit)
	}

	records, err := s.journal.SessionRecords(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("journal read failed")
		respondError(w, http.StatusInternalServerError, "journal_read_failed", err.Error())
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"mode":       s.journal.Mode(),
		"records":    records,
	})
}
