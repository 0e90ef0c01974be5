package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/antoniostano/parley/internal/observability"
	"github.com/antoniostano/parley/internal/protocol"
	"github.com/antoniostano/parley/internal/reliability"
)

const (
	// OfflineEndResponse answers an end-session turn the upstream never saw.
	OfflineEndResponse = "Session ended (offline mode - API unavailable)"

	unavailableResponse = "I apologize, but I'm currently unable to connect to the chat service. " +
		"This might be due to network issues or server maintenance. Please try again later."
)

var errNoUpstream = errors.New("dialogue gateway has no upstream")

// Gateway relays turns to an upstream client and converts every failure
// into a synthesized payload. Exchange never returns an error.
type Gateway struct {
	upstream Client
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func New(upstream Client, metrics *observability.Metrics, logger zerolog.Logger) *Gateway {
	return &Gateway{
		upstream: upstream,
		metrics:  metrics,
		logger:   logger.With().Str("component", "dialogue_gateway").Logger(),
	}
}

// Upstream returns the client the gateway forwards to.
func (g *Gateway) Upstream() Client {
	return g.upstream
}

// Forward executes one attempt and always returns a structurally valid payload.
// req is the single decoded copy of the turn; the failure path reads the
// end_session flag from it rather than from any transport body.
func (g *Gateway) Forward(ctx context.Context, req protocol.TurnRequest) protocol.TurnResponse {
	start := time.Now()
	resp, err := g.attempt(ctx, req)
	g.metrics.ObserveGatewayRoundTrip(time.Since(start))
	if err == nil {
		return resp
	}

	reason := reliability.ClassifyFailure(err)
	g.metrics.ObserveGatewayFailure(reason, req.EndSession)
	g.logger.Warn().
		Err(err).
		Str("session_id", req.SessionID).
		Bool("end_session", req.EndSession).
		Str("reason", reason).
		Bool("retryable", reliability.Retryable(err)).
		Dur("elapsed", time.Since(start)).
		Msg("dialogue upstream failed, synthesizing fallback")
	return Fallback(req, err)
}

// Exchange implements Client.
func (g *Gateway) Exchange(ctx context.Context, req protocol.TurnRequest) (protocol.TurnResponse, error) {
	return g.Forward(ctx, req), nil
}

func (g *Gateway) attempt(ctx context.Context, req protocol.TurnRequest) (resp protocol.TurnResponse, err error) {
	if g.upstream == nil {
		return protocol.TurnResponse{}, errNoUpstream
	}
	defer func() {
		if r := recover(); r != nil {
			resp = protocol.TurnResponse{}
			err = fmt.Errorf("dialogue upstream panic: %v", r)
		}
	}()
	return g.upstream.Exchange(ctx, req)
}

// Fallback synthesizes the payload returned when the upstream failed.
func Fallback(req protocol.TurnRequest, cause error) protocol.TurnResponse {
	if req.EndSession {
		return protocol.TurnResponse{
			Response:     OfflineEndResponse,
			SessionEnded: true,
		}
	}
	detail := "Unknown error"
	if cause != nil && strings.TrimSpace(cause.Error()) != "" {
		detail = cause.Error()
	}
	return protocol.TurnResponse{
		Response: unavailableResponse + "\n\nError details: " + detail,
		Error:    true,
	}
}
