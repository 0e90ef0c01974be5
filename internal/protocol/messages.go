package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EndSessionInput is the input_text sent with a terminating turn.
const EndSessionInput = "End Session"

// DefaultBELimit is the be_limit attribute attached to every turn.
const DefaultBELimit = 5

var ErrEmptyBody = errors.New("empty turn request body")

// SessionAttributes travel with every turn.
type SessionAttributes struct {
	BELimit int `json:"be_limit"`
}

// TurnRequest is the body sent to the dialogue endpoint for one turn.
//
// Raw holds the inbound body when the request was parsed from the wire. It is
// relayed upstream as-is so fields the typed view cannot hold survive the hop.
type TurnRequest struct {
	InputText         string            `json:"input_text"`
	SessionID         string            `json:"session_id"`
	EndSession        bool              `json:"end_session"`
	SessionAttributes SessionAttributes `json:"session_attributes"`
	Raw               json.RawMessage   `json:"-"`
}

// TurnResponse is the dialogue payload for one turn.
//
// Raw holds the upstream body exactly as received when the response was
// decoded from the wire, so it can be relayed without loss of unknown fields.
type TurnResponse struct {
	Response     string          `json:"response"`
	Error        bool            `json:"error,omitempty"`
	SessionEnded bool            `json:"session_ended,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// ParseTurnRequest decodes a turn request body once. Callers keep the
// returned value for both the success and the failure paths.
//
// Only syntactically invalid JSON is an error. Fields with unexpected types
// are left at their zero value in the typed view and kept verbatim in Raw, so
// a readable end_session flag is never lost to a mismatch elsewhere.
func ParseTurnRequest(raw []byte) (TurnRequest, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return TurnRequest{}, ErrEmptyBody
	}
	if !json.Valid(raw) {
		var v any
		err := json.Unmarshal(raw, &v)
		return TurnRequest{}, fmt.Errorf("invalid turn request: %w", err)
	}

	req := TurnRequest{Raw: append(json.RawMessage(nil), raw...)}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Valid JSON that is not an object carries no readable fields.
		return req, nil
	}
	decodeField(fields, "input_text", &req.InputText)
	decodeField(fields, "session_id", &req.SessionID)
	decodeField(fields, "end_session", &req.EndSession)

	var attrs map[string]json.RawMessage
	if decodeField(fields, "session_attributes", &attrs) {
		var limit json.Number
		if decodeField(attrs, "be_limit", &limit) {
			if f, err := limit.Float64(); err == nil && f == float64(int(f)) {
				req.SessionAttributes.BELimit = int(f)
			}
		}
	}
	return req, nil
}

// decodeField unmarshals fields[key] into out and reports success. A missing
// key, a null or a type mismatch leaves out untouched.
func decodeField(fields map[string]json.RawMessage, key string, out any) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(v, out) == nil
}

// DecodeTurnResponse decodes a dialogue payload and keeps the raw body.
func DecodeTurnResponse(raw []byte) (TurnResponse, error) {
	var resp TurnResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return TurnResponse{}, fmt.Errorf("decode turn response: %w", err)
	}
	resp.Raw = append(json.RawMessage(nil), raw...)
	return resp, nil
}

// EventType identifies transcript push payloads.
type EventType string

const (
	TypeTranscriptEntry   EventType = "transcript_entry"
	TypeTranscriptCleared EventType = "transcript_cleared"
	TypeSessionState      EventType = "session_state"
)

// TranscriptEntry is the wire shape of one transcript entry.
type TranscriptEntry struct {
	Type      EventType `json:"type"`
	ID        uint64    `json:"id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type TranscriptCleared struct {
	Type EventType `json:"type"`
}

// SessionState is pushed with every transcript change so observers can
// render the loading flag and active session id.
type SessionState struct {
	Type      EventType `json:"type"`
	State     string    `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	InFlight  bool      `json:"in_flight"`
}
