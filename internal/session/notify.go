package session

import "sync"

// stateHub fans out controller snapshots. Full subscribers lose updates
// instead of blocking the controller.
type stateHub struct {
	mu      sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	dropped uint64
	onDrop  func(total uint64)
}

func newStateHub(onDrop func(total uint64)) *stateHub {
	return &stateHub{subs: make(map[int]chan Snapshot), onDrop: onDrop}
}

func (h *stateHub) subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Snapshot, buffer)

	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *stateHub) publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			h.dropped++
			if h.onDrop != nil {
				h.onDrop(h.dropped)
			}
		}
	}
}
