package events

import (
	"testing"

	"token-auction-house/internal/domain"
)

func TestHub_PublishAndSubscribe(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	hub.Publish(domain.Event{EventID: "e1", Type: domain.EventListed, TokenID: 1})

	e := <-ch
	if e.EventID != "e1" || e.Type != domain.EventListed {
		t.Errorf("event mismatch: %+v", e)
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	chA, unsubA := hub.Subscribe()
	defer unsubA()
	chB, unsubB := hub.Subscribe()
	defer unsubB()

	hub.Publish(domain.Event{EventID: "e1", Type: domain.EventBidPlaced, TokenID: 1})

	if e := <-chA; e.EventID != "e1" {
		t.Errorf("subscriber A missed event: %+v", e)
	}
	if e := <-chB; e.EventID != "e1" {
		t.Errorf("subscriber B missed event: %+v", e)
	}
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	// Overfill the buffer; publishes past capacity must not block.
	for i := 0; i < DefaultBuffer+10; i++ {
		hub.Publish(domain.Event{EventID: "e", Type: domain.EventBidPlaced, TokenID: uint64(i)})
	}

	if len(ch) != DefaultBuffer {
		t.Errorf("expected full buffer of %d, got %d", DefaultBuffer, len(ch))
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe()
	unsubscribe()

	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	hub.Publish(domain.Event{EventID: "e1"})
}

func TestHub_CloseClosesSubscribers(t *testing.T) {
	hub := NewHub(nil)

	ch, _ := hub.Subscribe()
	hub.Close()

	if _, open := <-ch; open {
		t.Error("channel still open after hub close")
	}

	// Subscribe after close yields a closed channel.
	late, _ := hub.Subscribe()
	if _, open := <-late; open {
		t.Error("post-close subscription returned an open channel")
	}
}
