package session

import (
	"sync"
	"sync/atomic"

	"github.com/arthurwhennig/asterix/internal/models"
)

// ProgressEvent is one observable change in a session: a status transition
// or a sub-query settlement.
type ProgressEvent struct {
	SessionID string                 `json:"extraction_id"`
	Status    models.SessionStatus   `json:"status"`
	Progress  float64                `json:"progress_percentage"`
	Step      string                 `json:"current_step"`
	SubQuery  models.SubQueryName    `json:"sub_query,omitempty"`
	Outcome   models.SubQueryOutcome `json:"outcome,omitempty"`
}

type Broadcaster struct {
	subscribers map[uint64]chan ProgressEvent
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan ProgressEvent),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan ProgressEvent) {
	id := b.nextID.Add(1)
	ch := make(chan ProgressEvent, 32) // Buffer covers a full session's events

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(ev ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing watchers to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
