// Package events fans progress and ledger notifications out to subscribers.
package events

import (
	"context"
	"sync"
	"time"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/pkg/logger"

	"go.uber.org/zap"
)

const defaultBuffer = 64

type Broker struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan model.Event
	nextID      uint64
	buffer      int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		subscribers: make(map[uint64]chan model.Event),
		buffer:      buffer,
	}
}

// Subscribe registers a subscriber until ctx is done, then closes the channel.
func (b *Broker) Subscribe(ctx context.Context) <-chan model.Event {
	ch := make(chan model.Event, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (b *Broker) Publish(event model.Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logger.Logger().Warn("dropping event for slow subscriber",
				zap.Uint64("subscriber", id),
				zap.String("kind", string(event.Kind)),
				zap.Int64("hunt_id", event.HuntID))
		}
	}
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
