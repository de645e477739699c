package transition

import (
	"sync"
	"time"
)

// EventType is a transition lifecycle stage.
type EventType string

const (
	EventScanning  EventType = "scanning"
	EventArmed     EventType = "armed"
	EventExecuting EventType = "executing"
	EventCompleted EventType = "completed"
	EventFallback  EventType = "fallback"
)

// Event reports a lifecycle change of the monitor.
type Event struct {
	Type     EventType `json:"type"`
	PlanID   string    `json:"plan_id,omitempty"`
	Style    Style     `json:"style,omitempty"`
	Position float64   `json:"position"` // deck A position in seconds
	Target   float64   `json:"target,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Subscription receives events published after it was created.
type Subscription struct {
	C    chan Event
	done chan struct{}
}

// Done is closed when the subscription is removed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// EventBus fans lifecycle events out to any number of subscribers.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with the given channel buffer.
func (b *EventBus) Subscribe(buffer int) *Subscription {
	s := &Subscription{
		C:    make(chan Event, max(1, buffer)),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a subscriber and closes its done channel.
func (b *EventBus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()
	if ok {
		close(s.done)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.C <- e:
		default:
		}
	}
}
