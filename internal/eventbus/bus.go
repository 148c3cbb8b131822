package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

// Kind is the closed set of events the engine publishes in-process.
type Kind string

const (
	// Realtime channel lifecycle.
	KindConnected       Kind = "connected"
	KindDisconnected    Kind = "disconnected"
	KindReconnected     Kind = "reconnected"
	KindReconnectFailed Kind = "reconnect_failed"
	KindVerified        Kind = "verified"

	// Notification stream.
	KindNotification Kind = "notification"
	KindReadSync     Kind = "read_sync"
	KindAllRead      Kind = "all_read"
	KindBadgeUpdate  Kind = "badge_update"
)

// Event carries one published occurrence. The payload field used depends on
// Kind: Notification for KindNotification, NotificationID for KindReadSync,
// Count for KindVerified and KindBadgeUpdate. Lifecycle kinds carry no payload.
type Event struct {
	Kind           Kind
	Notification   *notify.Notification
	NotificationID string
	Count          int
	At             time.Time

	// Synthetic marks events replayed by the catch-up poll. They exist to
	// surface missed notifications to the UI; the unread count is taken from
	// the server total instead, so counters must not fold them in.
	Synthetic bool
}

// Subscriber is one consumer's registration on the bus.
//
// The channel is buffered and publishes are non-blocking: a consumer that
// cannot keep up drops events rather than stalling producers, the same policy
// the realtime channel applies to its own inbound dispatch.
type Subscriber struct {
	ID string
	Ch chan Event

	kinds map[Kind]bool
}

// wants reports whether the subscriber asked for this kind.
// An empty filter means all kinds.
func (s *Subscriber) wants(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	return s.kinds[k]
}

// Bus is a minimal typed publish/subscribe primitive. Every other component of
// the engine uses it to decouple producers from consumers in-process.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs: make(map[string]*Subscriber),
	}
}

// Subscribe registers a consumer for the given kinds (all kinds when none are
// given) and returns its subscription.
func (b *Bus) Subscribe(kinds ...Kind) *Subscriber {
	sub := &Subscriber{
		ID:    uuid.New().String(),
		Ch:    make(chan Event, 32),
		kinds: make(map[Kind]bool, len(kinds)),
	}
	for _, k := range kinds {
		sub.kinds[k] = true
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
// Safe to call once per subscriber.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub.ID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, sub.ID)
	b.mu.Unlock()
	close(sub.Ch)
}

// Publish delivers the event to every interested subscriber.
// Slow subscribers are skipped (non-blocking send).
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.wants(event.Kind) {
			continue
		}
		select {
		case sub.Ch <- event:
		default:
			// slow subscriber, drop event
		}
	}
}

// Close unsubscribes everyone. Used when the session is disposed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.Ch)
	}
}
