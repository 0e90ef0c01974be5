package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/parley/internal/protocol"
	"github.com/antoniostano/parley/internal/reliability"
)

func turn(text string, end bool) protocol.TurnRequest {
	return protocol.TurnRequest{
		InputText:         text,
		SessionID:         "session-1-abc",
		EndSession:        end,
		SessionAttributes: protocol.SessionAttributes{BELimit: protocol.DefaultBELimit},
	}
}

func TestHTTPClientForwardsJSON(t *testing.T) {
	var got protocol.TurnRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"hi <b>there</b>","trace":"t-1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	resp, err := c.Exchange(context.Background(), turn("hello", false))
	require.NoError(t, err)

	assert.Equal(t, "hello", got.InputText)
	assert.Equal(t, "session-1-abc", got.SessionID)
	assert.Equal(t, 5, got.SessionAttributes.BELimit)

	assert.Equal(t, "hi <b>there</b>", resp.Response)
	assert.False(t, resp.Error)
	assert.JSONEq(t, `{"response":"hi <b>there</b>","trace":"t-1"}`, string(resp.Raw))
}

func TestHTTPClientRelaysRawRequestBody(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	body := `{"input_text":"hi","session_id":null,"end_session":false,"session_attributes":{"be_limit":5.0,"locale":"en"}}`
	req, err := protocol.ParseTurnRequest([]byte(body))
	require.NoError(t, err)

	_, err = NewHTTPClient(srv.URL, time.Second).Exchange(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestHTTPClientNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"response":"should not be parsed"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Exchange(context.Background(), turn("x", false))
	var statusErr *reliability.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, "API responded with status: 502", err.Error())
}

func TestHTTPClientMalformedBodyIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Exchange(context.Background(), turn("x", false))
	require.Error(t, err)
	assert.Equal(t, reliability.ReasonDecode, reliability.ClassifyFailure(err))
}

func TestHTTPClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url, time.Second).Exchange(context.Background(), turn("x", false))
	require.Error(t, err)
	assert.Equal(t, reliability.ReasonNetwork, reliability.ClassifyFailure(err))
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPClient(srv.URL, 50*time.Millisecond).Exchange(context.Background(), turn("x", false))
	require.Error(t, err)
	assert.Equal(t, reliability.ReasonTimeout, reliability.ClassifyFailure(err))
}
