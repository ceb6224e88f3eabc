package branch

import (
	"sync"

	"github.com/google/uuid"
)

// SwitchEvent is delivered to switch subscribers after a successful branch
// switch. Branch is nil when the switched-to branch was not in the cached
// listing.
type SwitchEvent struct {
	BranchID string
	Branch   *Branch
}

// SwitchNotifier fans branch switches out to in-process subscribers.
// Delivery is non-blocking: a subscriber that stops draining its channel
// misses events rather than stalling the switch path.
type SwitchNotifier struct {
	mu          sync.Mutex
	subscribers map[string]chan SwitchEvent
}

func NewSwitchNotifier() *SwitchNotifier {
	return &SwitchNotifier{
		subscribers: make(map[string]chan SwitchEvent),
	}
}

// Subscribe registers a subscriber. The returned cancel func releases it.
func (n *SwitchNotifier) Subscribe() (<-chan SwitchEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan SwitchEvent, 8)
	n.subscribers[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subscribers[id]; ok {
			delete(n.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Notify delivers the event to every subscriber, dropping it for any whose
// buffer is full.
func (n *SwitchNotifier) Notify(evt SwitchEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
