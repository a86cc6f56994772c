// Package bus fans committed-fact notices out to in-process subscribers,
// primarily the SSE stream handlers.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

// subscriberBuffer holds a full ETL batch between reads.
const subscriberBuffer = 256

type Bus struct {
	subscribers map[uint64]chan models.FactNotice
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[uint64]chan models.FactNotice),
	}
}

func (b *Bus) Subscribe() (uint64, <-chan models.FactNotice) {
	id := b.nextID.Add(1)
	ch := make(chan models.FactNotice, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(n models.FactNotice) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- n:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
