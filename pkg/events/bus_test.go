package events

import (
	"testing"

	"github.com/jscyril/feedaudio/api"
)

func TestPublishDeliversToTypedSubscribers(t *testing.T) {
	bus := NewEventBus()
	errs := bus.Subscribe(api.EventError)
	all := bus.SubscribeAll()

	bus.Publish(api.AudioEvent{Type: api.EventError, Payload: "boom"})
	bus.Publish(api.AudioEvent{Type: api.EventPositionUpdate})

	if got := len(errs); got != 1 {
		t.Fatalf("error subscriber got %d events, want 1", got)
	}
	if got := len(all); got != 2 {
		t.Fatalf("all subscriber got %d events, want 2", got)
	}
	ev := <-errs
	if ev.Payload != "boom" {
		t.Errorf("payload = %v, want boom", ev.Payload)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(api.EventStateChange)

	for i := 0; i < 50; i++ {
		bus.Publish(api.AudioEvent{Type: api.EventStateChange})
	}

	if bus.Dropped() != 40 {
		t.Errorf("Dropped() = %d, want 40", bus.Dropped())
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch := bus.SubscribeAll()
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}

	// publishing after unsubscribe must not panic on the closed channel
	bus.Publish(api.AudioEvent{Type: api.EventStateChange})
}

func TestCloseIsTerminal(t *testing.T) {
	bus := NewEventBus()
	a := bus.SubscribeAll()
	bus.Close()

	if _, ok := <-a; ok {
		t.Error("existing subscriber should be closed")
	}
	late := bus.Subscribe(api.EventError)
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed immediately")
	}
}
