package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Emit(KindMessageSent, "u1+u2", "")

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageSent {
			t.Errorf("got kind %q, want %q", evt.Kind, KindMessageSent)
		}
		ref, ok := evt.Payload.(ChatRef)
		if !ok || ref.ChatID != "u1+u2" {
			t.Errorf("payload = %#v, want ChatRef for u1+u2", evt.Payload)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chatlist.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageSent})
	b.Publish(Event{Kind: KindChatListUpdated})

	select {
	case evt := <-ch:
		if evt.Kind != KindChatListUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindChatListUpdated)
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

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	unsub()
	unsub()

	b.Emit(KindChatOpened, "a+b", "")

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 1)
	defer unsub()

	b.Emit(KindMessageSent, "one", "")
	b.Emit(KindMessageSent, "two", "")

	evt := <-ch
	if ref := evt.Payload.(ChatRef); ref.ChatID != "one" {
		t.Errorf("got %q, want one", ref.ChatID)
	}
	select {
	case evt := <-ch:
		t.Errorf("second event should have been dropped, got %v", evt)
	default:
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var b *Bus
	b.Publish(Event{Kind: KindMessageSent})
}
