package journal

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/antoniostano/parley/internal/transcript"
)

const saveTimeout = 5 * time.Second

// Recorder copies appended transcript entries into a Store.
type Recorder struct {
	store  Store
	redact bool
	logger zerolog.Logger
}

func NewRecorder(store Store, redact bool, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		redact: redact,
		logger: logger.With().Str("component", "journal").Str("journal_mode", store.Mode()).Logger(),
	}
}

// Record writes one entry. User and assistant content is redacted when enabled;
// system lines carry session ids whose digits would trip the phone pattern.
func (r *Recorder) Record(ctx context.Context, e transcript.Entry) error {
	rec := Record{
		SessionID: e.SessionID,
		EntryID:   e.ID,
		Kind:      string(e.Kind),
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
	}
	if r.redact && e.Kind != transcript.KindSystem {
		rec.Content, rec.Redacted = RedactPII(e.Content)
	}
	return r.store.Save(ctx, rec)
}

// Run drains events until ctx is done or the channel is closed.
func (r *Recorder) Run(ctx context.Context, events <-chan transcript.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != transcript.EventAppended {
				continue
			}
			saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
			if err := r.Record(saveCtx, ev.Entry); err != nil {
				r.logger.Error().Err(err).
					Str("session_id", ev.Entry.SessionID).
					Uint64("entry_id", ev.Entry.ID).
					Msg("journal write failed")
			}
			cancel()
		}
	}
}
