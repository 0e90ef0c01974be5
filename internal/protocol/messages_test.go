package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTurnRequest(t *testing.T) {
	raw := []byte(`{"input_text":"hello","session_id":"s1","end_session":false,"session_attributes":{"be_limit":5}}`)
	req, err := ParseTurnRequest(raw)
	require.NoError(t, err)

	assert.Equal(t, "hello", req.InputText)
	assert.Equal(t, "s1", req.SessionID)
	assert.False(t, req.EndSession)
	assert.Equal(t, 5, req.SessionAttributes.BELimit)
}

func TestParseTurnRequestNullSessionID(t *testing.T) {
	req, err := ParseTurnRequest([]byte(`{"input_text":"x","session_id":null,"end_session":true}`))
	require.NoError(t, err)
	assert.Empty(t, req.SessionID)
	assert.True(t, req.EndSession)
}

func TestParseTurnRequestToleratesFieldTypeMismatch(t *testing.T) {
	cases := map[string]string{
		"float be_limit":    `{"input_text":"End Session","session_id":"s1","end_session":true,"session_attributes":{"be_limit":5.0}}`,
		"numeric session":   `{"input_text":"End Session","session_id":42,"end_session":true,"session_attributes":{"be_limit":5}}`,
		"string attributes": `{"input_text":"End Session","session_id":"s1","end_session":true,"session_attributes":"none"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := ParseTurnRequest([]byte(body))
			require.NoError(t, err)
			assert.True(t, req.EndSession)
			assert.Equal(t, "End Session", req.InputText)
			assert.JSONEq(t, body, string(req.Raw))
		})
	}

	req, err := ParseTurnRequest([]byte(`{"session_attributes":{"be_limit":5.0}}`))
	require.NoError(t, err)
	assert.Equal(t, 5, req.SessionAttributes.BELimit)
}

func TestParseTurnRequestKeepsUnknownFields(t *testing.T) {
	body := `{"input_text":"hi","session_id":null,"end_session":false,"session_attributes":{"be_limit":5,"locale":"en"}}`
	req, err := ParseTurnRequest([]byte(body))
	require.NoError(t, err)
	assert.JSONEq(t, body, string(req.Raw))
}

func TestParseTurnRequestNonObjectIsRelayable(t *testing.T) {
	req, err := ParseTurnRequest([]byte(`["hi"]`))
	require.NoError(t, err)
	assert.False(t, req.EndSession)
	assert.JSONEq(t, `["hi"]`, string(req.Raw))
}

func TestParseTurnRequestRejectsEmptyAndMalformed(t *testing.T) {
	_, err := ParseTurnRequest([]byte("   "))
	assert.True(t, errors.Is(err, ErrEmptyBody))

	_, err = ParseTurnRequest([]byte("{not-json"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyBody))

	_, err = ParseTurnRequest([]byte(`{"end_session":true`))
	require.Error(t, err)
}

func TestTurnRequestWireShape(t *testing.T) {
	body, err := json.Marshal(TurnRequest{
		InputText:         EndSessionInput,
		SessionID:         "s1",
		EndSession:        true,
		SessionAttributes: SessionAttributes{BELimit: DefaultBELimit},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"input_text":"End Session","session_id":"s1","end_session":true,"session_attributes":{"be_limit":5}}`, string(body))
}

func TestDecodeTurnResponseKeepsRawBody(t *testing.T) {
	raw := []byte(`{"response":"hi","session_ended":true,"extra":{"k":1}}`)
	resp, err := DecodeTurnResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, "hi", resp.Response)
	assert.True(t, resp.SessionEnded)
	assert.False(t, resp.Error)
	assert.JSONEq(t, string(raw), string(resp.Raw))
}

func TestTurnResponseOmitsUnsetFlags(t *testing.T) {
	body, err := json.Marshal(TurnResponse{Response: "ok", Raw: json.RawMessage(`{"ignored":true}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"ok"}`, string(body))
}
