package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/parley/internal/protocol"
	"github.com/antoniostano/parley/internal/session"
	"github.com/antoniostano/parley/internal/transcript"
)

const (
	wsWriteTimeout     = 10 * time.Second
	wsReadTimeout      = 120 * time.Second
	wsPingInterval     = 30 * time.Second
	wsSubscriberBuffer = 256
)

func (s *Server) handleListTranscript(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"session":    s.controller.Snapshot(),
		"transcript": s.controller.Transcript().Entries(),
	})
}

func (s *Server) handleClearTranscript(w http.ResponseWriter, _ *http.Request) {
	s.controller.ClearTranscript()
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscriptWS pushes the current transcript followed by every change.
// Clients only listen; inbound frames other than control frames are ignored.
func (s *Server) handleTranscriptWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ObserveSessionEvent("ws_connected")
	defer s.metrics.ObserveSessionEvent("ws_disconnected")

	// Subscribe before the backlog snapshot so nothing falls in between.
	// An entry can then arrive twice; clients dedupe on id.
	events, unsubscribe := s.controller.Transcript().Subscribe(wsSubscriberBuffer)
	defer unsubscribe()
	states, unsubscribeStates := s.controller.SubscribeState(wsSubscriberBuffer)
	defer unsubscribeStates()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writeTranscript(ctx, conn, events, states)
	}()

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writerDone
}

// writeTranscript sends entries and cleared markers from events, and a
// session_state for every controller transition from states, so observers
// see the in-flight flag rise when a turn starts.
func (s *Server) writeTranscript(
	ctx context.Context,
	conn *websocket.Conn,
	events <-chan transcript.Event,
	states <-chan session.Snapshot,
) {
	for _, e := range s.controller.Transcript().Entries() {
		if !s.writeWS(conn, entryMessage(e)) {
			return
		}
	}
	if !s.writeWS(conn, sessionStateMessage(s.controller.Snapshot())) {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			var msg any = protocol.TranscriptCleared{Type: protocol.TypeTranscriptCleared}
			if ev.Type == transcript.EventAppended {
				msg = entryMessage(ev.Entry)
			}
			if !s.writeWS(conn, msg) {
				return
			}
		case snap, ok := <-states:
			if !ok {
				return
			}
			if !s.writeWS(conn, sessionStateMessage(snap)) {
				return
			}
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) bool {
	msgType := string(messageTypeOf(msg))
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.metrics.ObserveWSMessage(msgType, "write_error")
		s.logger.Debug().Err(err).Str("type", msgType).Msg("transcript push failed")
		return false
	}
	s.metrics.ObserveWSMessage(msgType, "sent")
	return true
}

func sessionStateMessage(snap session.Snapshot) protocol.SessionState {
	return protocol.SessionState{
		Type:      protocol.TypeSessionState,
		State:     string(snap.State),
		SessionID: snap.SessionID,
		InFlight:  snap.InFlight,
	}
}

func entryMessage(e transcript.Entry) protocol.TranscriptEntry {
	return protocol.TranscriptEntry{
		Type:      protocol.TypeTranscriptEntry,
		ID:        e.ID,
		Kind:      string(e.Kind),
		Content:   e.Content,
		SessionID: e.SessionID,
		CreatedAt: e.CreatedAt,
	}
}

func messageTypeOf(msg any) protocol.EventType {
	switch m := msg.(type) {
	case protocol.TranscriptEntry:
		return m.Type
	case protocol.TranscriptCleared:
		return m.Type
	case protocol.SessionState:
		return m.Type
	default:
		return "unknown"
	}
}
