package services

import (
	"sync"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

// DefaultSubscriberBuffer is the channel capacity given to each observer
const DefaultSubscriberBuffer = 64

// Broadcaster fans observer events out to subscribers. Publish never
// blocks: a subscriber whose buffer is full is dropped.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan domain.ObserverEvent
	buffer      int
	closed      bool
}

var _ domain.EventPublisher = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		subscribers: make(map[string]chan domain.ObserverEvent),
		buffer:      buffer,
	}
}

// Subscribe registers an observer. Subscribing an existing id replaces it.
func (b *Broadcaster) Subscribe(id string) <-chan domain.ObserverEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.ObserverEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	if old, ok := b.subscribers[id]; ok {
		close(old)
	}
	b.subscribers[id] = ch
	return ch
}

// Unsubscribe removes an observer and closes its channel
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish delivers event to every subscriber with room in its buffer
func (b *Broadcaster) Publish(event domain.ObserverEvent) {
	var slow []string

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			slow = append(slow, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range slow {
		logger.Warn("Dropping slow observer", "subscriber_id", id, "event_type", event.Type)
		b.dropIfFull(id)
	}
}

func (b *Broadcaster) dropIfFull(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok && len(ch) == cap(ch) {
		delete(b.subscribers, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active observers
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel and rejects further publishes
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	logger.Debug("Broadcaster closed")
}
