package events

import (
	"sync"

	"kassa/internal/models"
)

const subscriberBuffer = 16

// StatusBus fans sync state changes out to subscribers. The engine and the
// network monitor publish; the UI awaits or polls its channel. Publishing
// never blocks: a subscriber that stops draining loses intermediate updates
// but the next publish still reflects the current state.
type StatusBus struct {
	mu          sync.RWMutex
	subscribers map[int]chan models.SyncStatus
	nextID      int
	last        models.SyncStatus
	hasLast     bool
}

// NewStatusBus constructs an empty bus.
func NewStatusBus() *StatusBus {
	return &StatusBus{subscribers: make(map[int]chan models.SyncStatus)}
}

// Subscribe registers a listener. The returned cancel function must be
// called when the listener goes away.
func (b *StatusBus) Subscribe() (<-chan models.SyncStatus, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.SyncStatus, subscriberBuffer)
	b.subscribers[id] = ch

	// Late subscribers immediately see the current state.
	if b.hasLast {
		ch <- b.last
	}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish notifies all subscribers of a state change. The sends happen
// under the lock: they are non-blocking, and holding the lock keeps a
// concurrent cancel from closing a channel mid-send.
func (b *StatusBus) Publish(status models.SyncStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = status
	b.hasLast = true
	for _, ch := range b.subscribers {
		select {
		case ch <- status:
		default:
		}
	}
}

// Last returns the most recently published state.
func (b *StatusBus) Last() (models.SyncStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.hasLast
}
