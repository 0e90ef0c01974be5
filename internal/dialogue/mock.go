package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/antoniostano/parley/internal/protocol"
)

// MockClient provides deterministic local replies for offline development.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Exchange(ctx context.Context, req protocol.TurnRequest) (protocol.TurnResponse, error) {
	select {
	case <-ctx.Done():
		return protocol.TurnResponse{}, ctx.Err()
	default:
	}

	if req.EndSession {
		return protocol.TurnResponse{
			Response:     fmt.Sprintf("Session <b>%s</b> ended.", req.SessionID),
			SessionEnded: true,
		}, nil
	}
	return protocol.TurnResponse{Response: buildMockReply(req)}, nil
}

func buildMockReply(req protocol.TurnRequest) string {
	text := strings.TrimSpace(req.InputText)
	if text == "" {
		text = "nothing"
	}
	return fmt.Sprintf("I heard you: <i>%s</i>", text)
}
