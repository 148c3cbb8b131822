package eventbus

import (
	"testing"
	"time"

	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

func recvEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case event := <-sub.Ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	n := &notify.Notification{ID: "n1", Title: "Order assigned"}
	bus.Publish(Event{Kind: KindNotification, Notification: n})

	event := recvEvent(t, sub)
	if event.Kind != KindNotification {
		t.Errorf("expected kind %s, got %s", KindNotification, event.Kind)
	}
	if event.Notification == nil || event.Notification.ID != "n1" {
		t.Errorf("notification payload not forwarded: %+v", event.Notification)
	}
	if event.At.IsZero() {
		t.Error("event timestamp not set")
	}
}

func TestSubscribeFiltersKinds(t *testing.T) {
	bus := New()
	sub := bus.Subscribe(KindBadgeUpdate)
	defer bus.Unsubscribe(sub)

	bus.Publish(Event{Kind: KindNotification})
	bus.Publish(Event{Kind: KindBadgeUpdate, Count: 4})

	event := recvEvent(t, sub)
	if event.Kind != KindBadgeUpdate {
		t.Errorf("expected only badge updates, got %s", event.Kind)
	}
	if event.Count != 4 {
		t.Errorf("expected count 4, got %d", event.Count)
	}

	select {
	case extra := <-sub.Ch:
		t.Errorf("unexpected extra event: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	if _, ok := <-sub.Ch; ok {
		t.Error("channel not closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(Event{Kind: KindConnected})
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	// Fill the buffer past capacity without reading.
	for i := 0; i < cap(sub.Ch)+10; i++ {
		bus.Publish(Event{Kind: KindNotification})
	}

	if len(sub.Ch) != cap(sub.Ch) {
		t.Errorf("expected a full buffer of %d, got %d", cap(sub.Ch), len(sub.Ch))
	}
}

func TestCloseUnsubscribesEveryone(t *testing.T) {
	bus := New()
	a := bus.Subscribe()
	b := bus.Subscribe(KindAllRead)

	bus.Close()

	if _, ok := <-a.Ch; ok {
		t.Error("first channel not closed")
	}
	if _, ok := <-b.Ch; ok {
		t.Error("second channel not closed")
	}
}
