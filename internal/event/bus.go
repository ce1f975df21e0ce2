// Package event provides an in-process pub/sub bus using watermill.
package event

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType represents the type of event.
type EventType string

const (
	DecisionMade     EventType = "decision.made"
	BufferRefreshed  EventType = "buffer.refreshed"
	MessageSent      EventType = "message.sent"
	SelectionFound   EventType = "selection.found"
	InstanceAppeared EventType = "instance.appeared"
	InstanceRemoved  EventType = "instance.removed"
)

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// subscriberEntry wraps a subscriber with an ID.
type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus manages pub/sub. Watermill's gochannel provides the delivery
// infrastructure; direct subscriber dispatch keeps type information intact
// for in-process consumers.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	closed bool
}

// globalBus is the default event bus instance.
var globalBus = NewBus()

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 64,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribe(eventType, id)
	}
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribeGlobal(id)
	}
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

// Publish delivers an event to all matching subscribers, synchronously.
// Hook invocations are short-lived; synchronous delivery means nothing is
// in flight when the process exits.
func Publish(eventType EventType, data any) {
	globalBus.Publish(eventType, data)
}

func (b *Bus) Publish(eventType EventType, data any) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	entries := make([]subscriberEntry, 0, len(b.subscribers[eventType])+len(b.global))
	entries = append(entries, b.subscribers[eventType]...)
	entries = append(entries, b.global...)
	b.mu.RUnlock()

	ev := Event{Type: eventType, Data: data}
	for _, entry := range entries {
		entry.fn(ev)
	}
}

// Close shuts down the bus. Further publishes and subscribes are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	return b.pubsub.Close()
}
