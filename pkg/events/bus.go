package events

import (
	"sync"

	"github.com/samber/lo"

	"github.com/jscyril/feedaudio/api"
)

const (
	typedBuffer = 10
	allBuffer   = 20
)

type subscriber struct {
	ch    chan api.AudioEvent
	types map[api.EventType]bool
}

// EventBus fans events out to subscriber channels. Publish never blocks.
type EventBus struct {
	mu      sync.RWMutex
	subs    []*subscriber
	dropped uint64
	closed  bool
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel receiving events of the given types
func (b *EventBus) Subscribe(eventTypes ...api.EventType) <-chan api.AudioEvent {
	return b.subscribe(typedBuffer, eventTypes)
}

// SubscribeAll returns a channel receiving every event type
func (b *EventBus) SubscribeAll() <-chan api.AudioEvent {
	return b.subscribe(allBuffer, api.AllEventTypes)
}

func (b *EventBus) subscribe(size int, eventTypes []api.EventType) <-chan api.AudioEvent {
	sub := &subscriber{
		ch:    make(chan api.AudioEvent, size),
		types: lo.SliceToMap(eventTypes, func(t api.EventType) (api.EventType, bool) { return t, true }),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
	} else {
		b.subs = append(b.subs, sub)
	}
	return sub.ch
}

// Publish delivers event to every subscriber of its type. A subscriber whose
// buffer is full misses it; each event carries a full snapshot, so the next
// one catches it up.
func (b *EventBus) Publish(event api.AudioEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.types[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped++
		}
	}
}

// Dropped returns how many deliveries were skipped.
func (b *EventBus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Unsubscribe removes ch and closes it. Unknown channels are ignored.
func (b *EventBus) Unsubscribe(ch <-chan api.AudioEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, idx, ok := lo.FindIndexOf(b.subs, func(s *subscriber) bool { return s.ch == ch })
	if !ok {
		return
	}
	b.subs = append(b.subs[:idx:idx], b.subs[idx+1:]...)
	close(sub.ch)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
	b.closed = true
}
