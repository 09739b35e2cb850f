package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	n := b.Publish(Event{Kind: "conversation.new_message", Timestamp: time.Now(), Payload: "test"})
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}

	select {
	case evt := <-ch:
		if evt.Kind != "conversation.new_message" {
			t.Errorf("got kind %q, want conversation.new_message", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Publish(Event{Kind: "conversation.deleted"})
	b.Publish(Event{Kind: "sync.completed"})

	select {
	case evt := <-ch:
		if evt.Kind != "sync.completed" {
			t.Errorf("got kind %q, want sync.completed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyNamespaceMatchesAll(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.Publish(Event{Kind: "conversation.deleted"})
	b.Publish(Event{Kind: "sync.completed"})

	if len(ch) != 2 {
		t.Errorf("buffered = %d, want 2", len(ch))
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 10)
	unsub()
	unsub() // second call is a no-op

	if n := b.Publish(Event{Kind: "conversation.deleted"}); n != 0 {
		t.Errorf("delivered = %d after unsubscribe, want 0", n)
	}

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	if n := b.Publish(Event{Kind: "x"}); n != 0 {
		t.Errorf("nil bus delivered %d", n)
	}
}
