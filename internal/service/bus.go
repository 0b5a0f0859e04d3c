package service

import "sync"

// Event is a change to a widget, map, projection or preset.
type Event struct {
	Resource string `json:"resource"` // "widgets", "maps", "projections", "baselayers", "collections"
	Action   string `json:"action"`   // "created", "changed", "loaded", "failed", "deleted", ...
	ID       string `json:"id"`
}

// EventBus is a fan-out pub/sub for change events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]map[string]bool
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]map[string]bool)}
}

// Publish sends e to every subscriber interested in its resource. Slow
// subscribers miss events rather than block the publisher.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, filter := range b.subs {
		if filter != nil && !filter[e.Resource] {
			continue
		}
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a buffered channel of events for the given resources,
// or for all resources when none are named.
func (b *EventBus) Subscribe(resources ...string) chan Event {
	var filter map[string]bool
	if len(resources) > 0 {
		filter = make(map[string]bool, len(resources))
		for _, r := range resources {
			filter[r] = true
		}
	}
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = filter
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Subscribers returns the number of open subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
