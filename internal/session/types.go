package session

// MessageRequest is the payload for sending a message over the API.
type MessageRequest struct {
	Text string `json:"text"`
}

// DraftRequest replaces the pending input buffer.
type DraftRequest struct {
	Text string `json:"text"`
}

// CreateResponse returns the created session metadata.
type CreateResponse struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
	BELimit   int    `json:"be_limit"`
}
