package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/antoniostano/parley/internal/dialogue"
	"github.com/antoniostano/parley/internal/observability"
	"github.com/antoniostano/parley/internal/protocol"
	"github.com/antoniostano/parley/internal/transcript"
)

type State string

const (
	StateNone   State = "NONE"
	StateActive State = "ACTIVE"
	StateEnding State = "ENDING"
)

// Guard errors. A call rejected with one of these changed nothing.
var (
	ErrEmptyInput    = errors.New("message text is empty")
	ErrNoSession     = errors.New("no active session")
	ErrTurnInFlight  = errors.New("a turn is already in flight")
	ErrSessionActive = errors.New("a session is already active")
)

const (
	createdPrefix         = "Session created: "
	warningMarker         = "⚠️ "
	noResponseText        = "No response received"
	connectionErrorText   = "❌ Connection Error: Unable to send message. Please check your internet connection and try again."
	sessionEndedText      = "Session ended"
	forcedTerminationText = "⚠️ Error ending session - forcing local session termination"
)

// Turn outcome labels.
const (
	outcomeOK             = "ok"
	outcomeAppError       = "app_error"
	outcomeTransportError = "transport_error"
)

// Snapshot is a consistent view of the controller for observers.
type Snapshot struct {
	State     State  `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	InFlight  bool   `json:"in_flight"`
	Draft     string `json:"draft,omitempty"`
	Entries   int    `json:"entries"`
}

// Options tunes a Controller. Zero values pick defaults.
type Options struct {
	BELimit int
	NewID   func() string
}

// Controller owns the single chat session and mediates every turn. State is
// mutated only through Create, SendMessage and End; at most one turn is in
// flight and further turns are rejected, never queued.
type Controller struct {
	mu         sync.Mutex
	client     dialogue.Client
	transcript *transcript.Store
	metrics    *observability.Metrics
	logger     zerolog.Logger
	attrs      protocol.SessionAttributes
	newID      func() string
	states     *stateHub

	state     State
	sessionID string
	inFlight  bool
	draft     string
}

func NewController(
	client dialogue.Client,
	store *transcript.Store,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	opts Options,
) *Controller {
	if store == nil {
		store = transcript.NewStore()
	}
	if opts.BELimit <= 0 {
		opts.BELimit = protocol.DefaultBELimit
	}
	if opts.NewID == nil {
		opts.NewID = NewSessionID
	}
	c := &Controller{
		client:     client,
		transcript: store,
		metrics:    metrics,
		logger:     logger.With().Str("component", "session_controller").Logger(),
		attrs:      protocol.SessionAttributes{BELimit: opts.BELimit},
		newID:      opts.NewID,
		state:      StateNone,
	}
	store.OnDrop(func(total uint64) { c.reportDrop("transcript", total) })
	c.states = newStateHub(func(total uint64) { c.reportDrop("session_state", total) })
	return c
}

// SubscribeState delivers a snapshot after every state or in-flight change,
// including the start of each turn. The cancel func releases the channel.
func (c *Controller) SubscribeState(buffer int) (<-chan Snapshot, func()) {
	return c.states.subscribe(buffer)
}

// reportDrop runs under the lock of the stream that dropped the event.
func (c *Controller) reportDrop(stream string, total uint64) {
	c.metrics.ObserveEventDrop(stream)
	c.logger.Warn().Str("stream", stream).Uint64("dropped_total", total).Msg("slow subscriber lost an event")
}

func (c *Controller) Transcript() *transcript.Store { return c.transcript }

// BELimit is the be_limit attribute sent with every turn.
func (c *Controller) BELimit() int { return c.attrs.BELimit }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the pending input buffer.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:     c.state,
		SessionID: c.sessionID,
		InFlight:  c.inFlight,
		Draft:     c.draft,
		Entries:   c.transcript.Len(),
	}
}

// Create starts a new session and returns its id. It does not refuse when a
// session already exists; callers disable the action instead.
func (c *Controller) Create() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createLocked()
}

// TryCreate creates a session only when none exists and no turn is in flight.
// It is the guarded form used by user-facing surfaces.
func (c *Controller) TryCreate() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.inFlight:
		return "", ErrTurnInFlight
	case c.state != StateNone:
		return "", ErrSessionActive
	}
	return c.createLocked(), nil
}

func (c *Controller) createLocked() string {
	id := c.newID()
	c.sessionID = id
	c.state = StateActive
	c.appendLocked(transcript.KindSystem, createdPrefix+id)
	c.states.publish(c.snapshotLocked())

	c.metrics.ObserveSessionEvent("created")
	c.logger.Info().Str("session_id", id).Msg("session created")
	return id
}

// SendMessage runs one normal turn and blocks until it settles. The turn is
// not canceled when ctx is; only the HTTP client timeout bounds it.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	msg := strings.TrimSpace(text)

	c.mu.Lock()
	switch {
	case msg == "":
		c.mu.Unlock()
		return ErrEmptyInput
	case c.sessionID == "":
		c.mu.Unlock()
		return ErrNoSession
	case c.inFlight:
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	sessionID := c.sessionID
	c.appendLocked(transcript.KindUser, msg)
	c.draft = ""
	c.inFlight = true
	c.states.publish(c.snapshotLocked())
	c.mu.Unlock()

	c.metrics.TurnStarted()
	start := time.Now()
	resp, err := c.exchange(ctx, protocol.TurnRequest{
		InputText:         msg,
		SessionID:         sessionID,
		EndSession:        false,
		SessionAttributes: c.attrs,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	outcome := outcomeOK
	switch {
	case err != nil:
		outcome = outcomeTransportError
		c.appendLocked(transcript.KindSystem, connectionErrorText)
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("send message failed")
	case resp.Error:
		outcome = outcomeAppError
		c.appendLocked(transcript.KindSystem, warningMarker+resp.Response)
	default:
		reply := resp.Response
		if reply == "" {
			reply = noResponseText
		}
		c.appendLocked(transcript.KindAssistant, reply)
	}
	c.inFlight = false
	c.states.publish(c.snapshotLocked())
	c.metrics.TurnFinished("message", outcome, time.Since(start))
	c.logger.Debug().
		Str("session_id", sessionID).
		Str("outcome", outcome).
		Dur("elapsed", time.Since(start)).
		Msg("turn settled")
	return nil
}

// SubmitDraft sends the pending input buffer.
func (c *Controller) SubmitDraft(ctx context.Context) error {
	return c.SendMessage(ctx, c.Draft())
}

// End runs the terminating turn. The session is cleared once the turn
// settles whatever its outcome.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.sessionID == "":
		c.mu.Unlock()
		return ErrNoSession
	case c.inFlight:
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	sessionID := c.sessionID
	c.state = StateEnding
	c.inFlight = true
	c.states.publish(c.snapshotLocked())
	c.mu.Unlock()

	c.metrics.TurnStarted()
	start := time.Now()
	resp, err := c.exchange(ctx, protocol.TurnRequest{
		InputText:         protocol.EndSessionInput,
		SessionID:         sessionID,
		EndSession:        true,
		SessionAttributes: c.attrs,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeTransportError
		c.appendLocked(transcript.KindSystem, forcedTerminationText)
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("end session failed, terminating locally")
	} else {
		text := resp.Response
		if text == "" {
			text = sessionEndedText
		}
		c.appendLocked(transcript.KindSystem, text)
	}
	c.sessionID = ""
	c.state = StateNone
	c.draft = ""
	c.inFlight = false
	c.states.publish(c.snapshotLocked())

	c.metrics.TurnFinished("end", outcome, time.Since(start))
	c.metrics.ObserveSessionEvent("ended")
	c.logger.Info().Str("session_id", sessionID).Str("outcome", outcome).Msg("session ended")
	return nil
}

// ClearTranscript empties the transcript without touching the session.
func (c *Controller) ClearTranscript() {
	c.transcript.Clear()
}

func (c *Controller) exchange(ctx context.Context, req protocol.TurnRequest) (resp protocol.TurnResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = protocol.TurnResponse{}
			err = errors.New("dialogue client panicked")
			c.logger.Error().Interface("panic", r).Str("session_id", req.SessionID).Msg("dialogue client panic")
		}
	}()
	if c.client == nil {
		return protocol.TurnResponse{}, errors.New("no dialogue client configured")
	}
	return c.client.Exchange(context.WithoutCancel(ctx), req)
}

// appendLocked normalizes markup exactly once and appends. c.mu must be held.
func (c *Controller) appendLocked(kind transcript.Kind, content string) transcript.Entry {
	return c.transcript.Append(kind, c.sessionID, transcript.NormalizeMarkup(content))
}
