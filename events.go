package cachify

import "github.com/cachify/cachify/events"

// EventKind enumerates the event bus's fixed set of event kinds (spec.md
// §7, plus the additive hit/miss kinds described in SPEC_FULL.md §10).
type EventKind = events.EventKind

const (
	EventRemove = events.EventRemove
	EventEvict  = events.EventEvict
	EventUpdate = events.EventUpdate
	EventHit    = events.EventHit
	EventMiss   = events.EventMiss
)

// Event is a single notification published on a Client's event bus.
type Event = events.Event

// Subscription is a handle returned by EventBus.Subscribe.
type Subscription = events.Subscription

// EventBus is a simple fixed-kind publish/subscribe bus.
type EventBus = events.EventBus

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return events.NewEventBus()
}
