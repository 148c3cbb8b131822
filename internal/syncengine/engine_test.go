package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dev-Codn/notificationfeb/internal/backend"
	"github.com/Dev-Codn/notificationfeb/internal/eventbus"
	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/metrics"
	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError})
}

type fakeBackend struct {
	mu            sync.Mutex
	markReadCalls []string
	allReadCalls  int
	pending       *backend.PendingResult
	history       []notify.Notification
	fail          bool
}

func (b *fakeBackend) MarkRead(ctx context.Context, notificationID, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("network down")
	}
	b.markReadCalls = append(b.markReadCalls, notificationID)
	return nil
}

func (b *fakeBackend) MarkAllRead(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("network down")
	}
	b.allReadCalls++
	return nil
}

func (b *fakeBackend) Pending(ctx context.Context, userID string, limit int) (*backend.PendingResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail || b.pending == nil {
		return nil, errors.New("network down")
	}
	return b.pending, nil
}

func (b *fakeBackend) History(ctx context.Context, userID string, limit, offset int) ([]notify.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return nil, errors.New("network down")
	}
	return b.history, nil
}

func (b *fakeBackend) allReads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allReadCalls
}

type fakeChannel struct {
	mu        sync.Mutex
	markReads []string
	allReads  int
	clicks    []string
}

func (c *fakeChannel) MarkRead(notificationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markReads = append(c.markReads, notificationID)
}

func (c *fakeChannel) MarkAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allReads++
}

func (c *fakeChannel) Clicked(notificationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicks = append(c.clicks, notificationID)
}

func newTestEngine(t *testing.T, be Backend) (*Engine, *eventbus.Bus, *fakeChannel) {
	t.Helper()
	bus := eventbus.New()
	ch := &fakeChannel{}
	e := New(Config{PendingPollLimit: 10, CatchUpSurfaceMax: 3}, "u1", be, ch, bus, metrics.New(), testLogger())
	t.Cleanup(e.Close)
	return e, bus, ch
}

func waitCount(t *testing.T, e *Engine, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.UnreadCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("count never reached %d, still %d", want, e.UnreadCount())
}

func TestNewNotificationIncrementsCount(t *testing.T) {
	e, bus, _ := newTestEngine(t, &fakeBackend{})

	bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	waitCount(t, e, 2)
}

func TestAbsoluteCorrectionOverwritesLocalDelta(t *testing.T) {
	e, bus, _ := newTestEngine(t, &fakeBackend{})

	for i := 0; i < 3; i++ {
		bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	}
	waitCount(t, e, 3)

	// Re-authentication reports the authoritative count: the accumulated
	// delta is discarded, never merged.
	bus.Publish(eventbus.Event{Kind: eventbus.KindVerified, Count: 7})
	waitCount(t, e, 7)

	bus.Publish(eventbus.Event{Kind: eventbus.KindBadgeUpdate, Count: 1})
	waitCount(t, e, 1)
}

func TestCountNeverGoesNegative(t *testing.T) {
	e, bus, _ := newTestEngine(t, &fakeBackend{})

	bus.Publish(eventbus.Event{Kind: eventbus.KindReadSync, NotificationID: "n1"})
	bus.Publish(eventbus.Event{Kind: eventbus.KindReadSync, NotificationID: "n2"})

	time.Sleep(20 * time.Millisecond)
	if got := e.UnreadCount(); got != 0 {
		t.Errorf("count went negative: %d", got)
	}

	e.MarkAsRead(context.Background(), "n3")
	if got := e.UnreadCount(); got != 0 {
		t.Errorf("count went negative after mark-read: %d", got)
	}
}

func TestMarkAsReadIsOptimisticAndDualWrites(t *testing.T) {
	be := &fakeBackend{}
	e, bus, ch := newTestEngine(t, be)

	bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	waitCount(t, e, 1)

	e.MarkAsRead(context.Background(), "n1")
	if got := e.UnreadCount(); got != 0 {
		t.Errorf("expected optimistic decrement to 0, got %d", got)
	}

	ch.mu.Lock()
	channelWrites := len(ch.markReads)
	ch.mu.Unlock()
	if channelWrites != 1 {
		t.Errorf("expected one channel notice, got %d", channelWrites)
	}
	be.mu.Lock()
	httpWrites := len(be.markReadCalls)
	be.mu.Unlock()
	if httpWrites != 1 {
		t.Errorf("expected one HTTP write-through, got %d", httpWrites)
	}
}

func TestMarkAsReadSwallowsNetworkFailure(t *testing.T) {
	be := &fakeBackend{fail: true}
	e, bus, _ := newTestEngine(t, be)

	bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	waitCount(t, e, 1)

	// Must not panic or surface the failure; the optimistic update stands.
	e.MarkAsRead(context.Background(), "n1")
	if got := e.UnreadCount(); got != 0 {
		t.Errorf("expected 0 after optimistic update, got %d", got)
	}
}

func TestMarkAllAsReadIsIdempotent(t *testing.T) {
	be := &fakeBackend{}
	e, bus, ch := newTestEngine(t, be)

	for i := 0; i < 4; i++ {
		bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	}
	waitCount(t, e, 4)

	e.MarkAllAsRead(context.Background())
	if got := e.UnreadCount(); got != 0 {
		t.Errorf("expected 0 after first call, got %d", got)
	}

	e.MarkAllAsRead(context.Background())
	if got := e.UnreadCount(); got != 0 {
		t.Errorf("expected 0 after second call, got %d", got)
	}

	if got := be.allReads(); got != 1 {
		t.Errorf("expected exactly one HTTP write-through, got %d", got)
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.allReads != 1 {
		t.Errorf("expected exactly one channel notice, got %d", ch.allReads)
	}
}

func TestAllReadEventZeroesCount(t *testing.T) {
	e, bus, _ := newTestEngine(t, &fakeBackend{})

	for i := 0; i < 5; i++ {
		bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	}
	waitCount(t, e, 5)

	bus.Publish(eventbus.Event{Kind: eventbus.KindAllRead})
	waitCount(t, e, 0)
}

func TestReadsReturnEmptyOnNetworkFailure(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeBackend{fail: true})

	if got := e.GetUnread(context.Background()); len(got) != 0 {
		t.Errorf("expected empty result, got %d items", len(got))
	}
	if got := e.GetHistory(context.Background(), 20, 0); len(got) != 0 {
		t.Errorf("expected empty history, got %d items", len(got))
	}
}

func TestCatchUpSurfacesBoundedSyntheticsAndOverwritesCount(t *testing.T) {
	pending := make([]notify.Notification, 6)
	for i := range pending {
		pending[i] = notify.Notification{ID: string(rune('a' + i)), Type: notify.TypeOrderAssigned}
	}
	be := &fakeBackend{pending: &backend.PendingResult{Notifications: pending, Total: 6}}
	e, bus, _ := newTestEngine(t, be)

	sub := bus.Subscribe(eventbus.KindNotification)
	defer bus.Unsubscribe(sub)

	// Local drift the server total must overwrite.
	bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	waitCount(t, e, 1)

	e.CatchUp(context.Background())
	waitCount(t, e, 6)

	surfaced := 0
	timeout := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case event := <-sub.Ch:
			if event.Synthetic {
				surfaced++
			}
		case <-timeout:
			break drain
		}
	}
	if surfaced != 3 {
		t.Errorf("expected at most 3 synthetic events, got %d", surfaced)
	}
}

func TestCatchUpFailureLeavesCountAlone(t *testing.T) {
	e, bus, _ := newTestEngine(t, &fakeBackend{fail: true})

	bus.Publish(eventbus.Event{Kind: eventbus.KindNotification})
	waitCount(t, e, 1)

	e.CatchUp(context.Background())
	if got := e.UnreadCount(); got != 1 {
		t.Errorf("failed poll must not change the count, got %d", got)
	}
}
