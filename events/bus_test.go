package events

import "testing"

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	var received []Event
	bus.Subscribe(func(ev Event) {
		received = append(received, ev)
	})

	bus.Publish(Event{Kind: EventUpdate, Flavor: "kvs", Scope: "global", Key: "a"})
	bus.Publish(Event{Kind: EventHit, Flavor: "kvs", Scope: "global", Key: "a"})

	if len(received) != 2 {
		t.Fatalf("got %d events, want 2", len(received))
	}
	if received[0].Kind != EventUpdate || received[1].Kind != EventHit {
		t.Errorf("unexpected event order: %+v", received)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	sub := bus.Subscribe(func(ev Event) { calls++ })

	bus.Publish(Event{Kind: EventMiss})
	sub.Unsubscribe()
	bus.Publish(Event{Kind: EventMiss})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (listener should stop after Unsubscribe)", calls)
	}
}

func TestEventBus_MultipleListeners(t *testing.T) {
	bus := NewEventBus()
	var a, b int
	bus.Subscribe(func(ev Event) { a++ })
	bus.Subscribe(func(ev Event) { b++ })

	bus.Publish(Event{Kind: EventRemove})

	if a != 1 || b != 1 {
		t.Errorf("a=%d b=%d, want both 1", a, b)
	}
}
