package api

import "sync"

// Notifier wakes long-poll waiters when a session gains a reply. Each waiter
// subscribes a buffered channel; Wake never blocks and a wake sent while the
// waiter is re-checking the store is retained by the buffer.
type Notifier struct {
	mu      sync.Mutex
	waiters map[string]map[chan struct{}]struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{waiters: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers a waiter for the session. The returned cancel func must
// be called when the wait ends.
func (n *Notifier) Subscribe(sessionID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.waiters[sessionID] == nil {
		n.waiters[sessionID] = make(map[chan struct{}]struct{})
	}
	n.waiters[sessionID][ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if set, ok := n.waiters[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(n.waiters, sessionID)
			}
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

// Wake signals every waiter subscribed to the session.
func (n *Notifier) Wake(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.waiters[sessionID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
