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
)

// Client executes one turn against a dialogue service. Implementations may
// fail; *Gateway is the implementation that never does.
type Client interface {
	Exchange(ctx context.Context, req protocol.TurnRequest) (protocol.TurnResponse, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req protocol.TurnRequest) (protocol.TurnResponse, error)

func (f ClientFunc) Exchange(ctx context.Context, req protocol.TurnRequest) (protocol.TurnResponse, error) {
	return f(ctx, req)
}

// Config controls gateway construction.
type Config struct {
	Mode      string
	RemoteURL string
	Timeout   time.Duration
}

// NewGateway builds the gateway for the configured upstream mode.
func NewGateway(cfg Config, metrics *observability.Metrics, logger zerolog.Logger) (*Gateway, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "http"
	}

	var upstream Client
	switch mode {
	case "http":
		if strings.TrimSpace(cfg.RemoteURL) == "" {
			return nil, errors.New("dialogue remote url is required for http mode")
		}
		upstream = NewHTTPClient(cfg.RemoteURL, cfg.Timeout)
	case "mock":
		upstream = NewMockClient()
	default:
		return nil, fmt.Errorf("unsupported dialogue gateway mode %q", cfg.Mode)
	}
	return New(upstream, metrics, logger), nil
}
