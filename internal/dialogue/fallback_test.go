package dialogue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/parley/internal/observability"
	"github.com/antoniostano/parley/internal/protocol"
)

func failingUpstreams(t *testing.T) map[string]Client {
	t.Helper()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	status := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"response":"nope"}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(status.Close)

	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":`))
	}))
	t.Cleanup(malformed.Close)

	return map[string]Client{
		"network error":  NewHTTPClient(closedURL, time.Second),
		"non-2xx status": NewHTTPClient(status.URL, time.Second),
		"malformed json": NewHTTPClient(malformed.URL, time.Second),
		"panicking client": ClientFunc(func(context.Context, protocol.TurnRequest) (protocol.TurnResponse, error) {
			panic("boom")
		}),
	}
}

func TestGatewayNeverErrorsMidSession(t *testing.T) {
	for name, upstream := range failingUpstreams(t) {
		t.Run(name, func(t *testing.T) {
			g := New(upstream, nil, zerolog.Nop())
			resp, err := g.Exchange(context.Background(), turn("hello", false))
			require.NoError(t, err)

			assert.NotEmpty(t, resp.Response)
			assert.True(t, resp.Error)
			assert.False(t, resp.SessionEnded)
			assert.Contains(t, resp.Response, "unable to connect to the chat service")
			assert.Contains(t, resp.Response, "\n\nError details: ")
		})
	}
}

func TestGatewayNeverErrorsOnEndSession(t *testing.T) {
	for name, upstream := range failingUpstreams(t) {
		t.Run(name, func(t *testing.T) {
			g := New(upstream, nil, zerolog.Nop())
			resp, err := g.Exchange(context.Background(), turn(protocol.EndSessionInput, true))
			require.NoError(t, err)

			assert.Equal(t, OfflineEndResponse, resp.Response)
			assert.True(t, resp.SessionEnded)
			assert.False(t, resp.Error)
		})
	}
}

func TestGatewayFallbackIncludesCause(t *testing.T) {
	g := New(ClientFunc(func(context.Context, protocol.TurnRequest) (protocol.TurnResponse, error) {
		return protocol.TurnResponse{}, errors.New("dial tcp: connection refused")
	}), nil, zerolog.Nop())

	resp := g.Forward(context.Background(), turn("hello", false))
	assert.True(t, strings.HasSuffix(resp.Response, "Error details: dial tcp: connection refused"))
}

func TestGatewayPassesSuccessThrough(t *testing.T) {
	want := protocol.TurnResponse{Response: "<b>ok</b>", Error: true}
	g := New(ClientFunc(func(context.Context, protocol.TurnRequest) (protocol.TurnResponse, error) {
		return want, nil
	}), nil, zerolog.Nop())

	resp := g.Forward(context.Background(), turn("hello", false))
	assert.Equal(t, want, resp)
}

func TestGatewayWithoutUpstream(t *testing.T) {
	g := New(nil, nil, zerolog.Nop())
	resp := g.Forward(context.Background(), turn("hello", false))
	assert.True(t, resp.Error)
	assert.Contains(t, resp.Response, "no upstream")
}

func TestGatewayCountsFailures(t *testing.T) {
	metrics := observability.NewMetricsWithRegisterer("test_gateway", prometheus.NewRegistry())
	g := New(ClientFunc(func(context.Context, protocol.TurnRequest) (protocol.TurnResponse, error) {
		return protocol.TurnResponse{}, context.DeadlineExceeded
	}), metrics, zerolog.Nop())

	g.Forward(context.Background(), turn(protocol.EndSessionInput, true))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GatewayFailures.WithLabelValues("timeout", "true")))
}

func TestFallbackUnknownError(t *testing.T) {
	resp := Fallback(turn("x", false), nil)
	assert.True(t, strings.HasSuffix(resp.Response, "Error details: Unknown error"))
}

func TestMockClient(t *testing.T) {
	c := NewMockClient()
	resp, err := c.Exchange(context.Background(), turn("hello", false))
	require.NoError(t, err)
	assert.Equal(t, "I heard you: <i>hello</i>", resp.Response)

	resp, err = c.Exchange(context.Background(), turn(protocol.EndSessionInput, true))
	require.NoError(t, err)
	assert.True(t, resp.SessionEnded)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Exchange(ctx, turn("hello", false))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGatewayModes(t *testing.T) {
	g, err := NewGateway(Config{Mode: "mock"}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, g.Upstream())

	g, err = NewGateway(Config{RemoteURL: "http://example.test/dev"}, nil, zerolog.Nop())
	require.NoError(t, err)
	hc, ok := g.Upstream().(*HTTPClient)
	require.True(t, ok)
	assert.Equal(t, "http://example.test/dev", hc.URL())

	_, err = NewGateway(Config{Mode: "http"}, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewGateway(Config{Mode: "grpc"}, nil, zerolog.Nop())
	assert.Error(t, err)
}
