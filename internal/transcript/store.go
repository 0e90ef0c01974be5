package transcript

import (
	"sync"
	"time"
)

type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSystem    Kind = "system"
)

// Entry is one immutable transcript line.
type Entry struct {
	ID        uint64    `json:"id"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventAppended EventType = "appended"
	EventCleared  EventType = "cleared"
)

// Event is delivered to subscribers after every change. Entry is set for
// EventAppended only.
type Event struct {
	Type  EventType
	Entry Entry
}

// Store is an append-only ordered log of entries. Entry ids keep increasing
// across Clear so they are never reused.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	lastID  uint64
	subs    map[int]chan Event
	nextSub int
	dropped uint64
	onDrop  func(total uint64)
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		subs: make(map[int]chan Event),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Append adds an entry at the end of the log and notifies subscribers.
func (s *Store) Append(kind Kind, sessionID, content string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	e := Entry{
		ID:        s.lastID,
		Kind:      kind,
		Content:   content,
		SessionID: sessionID,
		CreatedAt: s.now(),
	}
	s.entries = append(s.entries, e)
	s.publishLocked(Event{Type: EventAppended, Entry: e})
	return e
}

// Entries returns a copy of the log in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear empties the log.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.publishLocked(Event{Type: EventCleared})
}

// Subscribe registers for change events. The returned cancel func must be
// called to release the channel. Slow subscribers lose events instead of
// blocking appends.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped reports how many events were discarded because a subscriber was full.
func (s *Store) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// OnDrop installs fn to be called, with the running total, each time an event
// is discarded for a full subscriber. fn runs with the store locked and must
// not call back into the store.
func (s *Store) OnDrop(fn func(total uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrop = fn
}

func (s *Store) publishLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.dropped++
			if s.onDrop != nil {
				s.onDrop(s.dropped)
			}
		}
	}
}
