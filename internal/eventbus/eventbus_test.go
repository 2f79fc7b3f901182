package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New[int](4)
	sub := b.Subscribe()
	b.Publish(7)
	select {
	case got := <-sub:
		if got != 7 {
			t.Fatalf("got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New[int](1)
	sub := b.Subscribe()
	b.Publish(1)
	b.Publish(2) // buffer full, dropped

	if got := <-sub; got != 1 {
		t.Fatalf("got %d", got)
	}
	select {
	case got := <-sub:
		t.Fatalf("unexpected second event %d", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[string](0)
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, open := <-sub; open {
		t.Fatal("channel should be closed")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish("x")
}

func TestCloseIdempotent(t *testing.T) {
	b := New[int](0)
	sub := b.Subscribe()
	b.Close()
	b.Close()
	if _, open := <-sub; open {
		t.Fatal("subscriber channel should be closed")
	}
	b.Publish(1) // no-op after close
	late := b.Subscribe()
	if _, open := <-late; open {
		t.Fatal("late subscriber must get a closed channel")
	}
}
