package transition

import (
	"testing"
	"time"
)

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	s1 := bus.Subscribe(4)
	s2 := bus.Subscribe(4)
	if bus.SubscriberCount() != 2 {
		t.Fatalf("SubscriberCount = %d", bus.SubscriberCount())
	}

	bus.Publish(Event{Type: EventArmed, Target: 150})

	for i, s := range []*Subscription{s1, s2} {
		select {
		case e := <-s.C:
			if e.Type != EventArmed || e.Target != 150 {
				t.Errorf("subscriber %d got %+v", i, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestEventBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	slow := bus.Subscribe(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Type: EventScanning})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if len(slow.C) != 1 {
		t.Errorf("buffered %d events, want 1", len(slow.C))
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	s := bus.Subscribe(1)
	bus.Unsubscribe(s)
	bus.Unsubscribe(s)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d", bus.SubscriberCount())
	}

	bus.Publish(Event{Type: EventCompleted})
	if len(s.C) != 0 {
		t.Error("unsubscribed channel received an event")
	}
}
