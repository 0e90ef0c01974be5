package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/antoniostano/parley/internal/config"
	"github.com/antoniostano/parley/internal/dialogue"
	"github.com/antoniostano/parley/internal/journal"
	"github.com/antoniostano/parley/internal/observability"
	"github.com/antoniostano/parley/internal/session"
)

type Server struct {
	cfg        config.Config
	gateway    *dialogue.Gateway
	controller *session.Controller
	journal    journal.Store
	metrics    *observability.Metrics
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
}

func New(
	cfg config.Config,
	gateway *dialogue.Gateway,
	controller *session.Controller,
	journalStore journal.Store,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	return &Server{
		cfg:        cfg,
		gateway:    gateway,
		controller: controller,
		journal:    journalStore,
		metrics:    metrics,
		logger:     logger.With().Str("component", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/chat", s.handleChat)

	r.Route("/v1/session", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/", s.handleCreateSession)
		r.Post("/message", s.handleSendMessage)
		r.Post("/end", s.handleEndSession)
		r.Put("/draft", s.handleSetDraft)
	})
	r.Route("/v1/transcript", func(r chi.Router) {
		r.Get("/", s.handleListTranscript)
		r.Delete("/", s.handleClearTranscript)
		r.Get("/ws", s.handleTranscriptWS)
	})
	r.Get("/v1/journal/{sessionID}", s.handleJournal)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"gateway_mode": s.cfg.GatewayMode,
		"journal_mode": s.journalMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	state := "ready"
	if s.gateway == nil || s.controller == nil {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	respondJSON(w, status, map[string]any{
		"status":       state,
		"gateway_mode": s.cfg.GatewayMode,
		"journal_mode": s.journalMode(),
	})
}

func (s *Server) journalMode() string {
	if s.journal == nil {
		return "disabled"
	}
	return s.journal.Mode()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
