package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/parley/internal/protocol"
	"github.com/antoniostano/parley/internal/reliability"
)

const maxResponseBytes = 4 << 20

// HTTPClient POSTs turns as JSON to a fixed endpoint. It is used both for the
// remote dialogue service and for a parley server's /api/chat route.
type HTTPClient struct {
	url    string
	client *http.Client
}

// NewHTTPClient returns a client for url. A zero timeout keeps the
// transport default of 60s.
func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) URL() string { return c.url }

// Exchange sends req.Raw verbatim when the turn was parsed from an inbound
// body, otherwise the marshaled typed request.
func (c *HTTPClient) Exchange(ctx context.Context, req protocol.TurnRequest) (protocol.TurnResponse, error) {
	payload := []byte(req.Raw)
	if len(payload) == 0 {
		var err error
		if payload, err = json.Marshal(req); err != nil {
			return protocol.TurnResponse{}, fmt.Errorf("marshal request: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return protocol.TurnResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return protocol.TurnResponse{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return protocol.TurnResponse{}, &reliability.StatusError{Code: res.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return protocol.TurnResponse{}, fmt.Errorf("read response: %w", err)
	}
	resp, err := protocol.DecodeTurnResponse(body)
	if err != nil {
		return protocol.TurnResponse{}, &reliability.DecodeError{Err: err}
	}
	return resp, nil
}
