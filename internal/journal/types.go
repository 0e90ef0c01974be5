package journal

import (
	"context"
	"time"
)

// Record is one transcript entry as written to the audit journal.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	EntryID   uint64    `json:"entry_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Redacted  bool      `json:"redacted"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists journal records. It is write-mostly: nothing in the
// process reads it back to restore a session.
type Store interface {
	Save(ctx context.Context, record Record) error
	SessionRecords(ctx context.Context, sessionID string, limit int) ([]Record, error)
	Mode() string
	Close() error
}
