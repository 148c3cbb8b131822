package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dev-Codn/notificationfeb/internal/eventbus"
	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/metrics"
	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError})
}

type fakeConn struct {
	mu        sync.Mutex
	writes    []Frame
	frames    chan Frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan Frame, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (Frame, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.closed:
		return Frame{}, io.EOF
	}
}

func (c *fakeConn) WriteFrame(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliver(event string, payload any) {
	c.frames <- NewFrame(event, payload)
}

func (c *fakeConn) written() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.writes))
	copy(out, c.writes)
	return out
}

type fakeTransport struct {
	mu    sync.Mutex
	dials atomic.Int32
	conns []*fakeConn
	fail  bool
}

func (t *fakeTransport) Dial(ctx context.Context) (Conn, error) {
	t.dials.Add(1)
	if t.fail {
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	return conn, nil
}

func (t *fakeTransport) latest() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

func shortConfig() Config {
	return Config{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		MaxAttempts:  3,
	}
}

func waitEvent(t *testing.T, sub *eventbus.Subscriber, kind eventbus.Kind) eventbus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sub.Ch:
			if event.Kind == kind {
				return event
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s event", kind)
			return eventbus.Event{}
		}
	}
}

func waitState(t *testing.T, ch *Channel, want notify.ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ch.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state never reached %s, still %s", want, ch.State())
}

func TestConnectSendsAuthenticateHandshake(t *testing.T) {
	bus := eventbus.New()
	transport := &fakeTransport{}
	ch := NewChannel(shortConfig(), transport, bus, metrics.New(), testLogger())
	defer ch.Disconnect()

	ch.Connect(context.Background(), Identity{
		UserID:   "u1",
		DeviceID: "d1",
		Info:     notify.DeviceInfo{DeviceType: notify.DeviceDesktop},
	})

	sub := bus.Subscribe(eventbus.KindConnected)
	defer bus.Unsubscribe(sub)
	waitEvent(t, sub, eventbus.KindConnected)

	conn := transport.latest()
	writes := conn.written()
	if len(writes) != 1 || writes[0].Event != EventAuthenticate {
		t.Fatalf("expected one authenticate frame, got %+v", writes)
	}

	var auth struct {
		UserID   string `json:"userId"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(writes[0].Payload, &auth); err != nil {
		t.Fatalf("malformed handshake payload: %v", err)
	}
	if auth.UserID != "u1" || auth.DeviceID != "d1" {
		t.Errorf("handshake carried %+v", auth)
	}
}

func TestVerifiedEventAuthenticatesAndCarriesCount(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe(eventbus.KindVerified)
	defer bus.Unsubscribe(sub)

	transport := &fakeTransport{}
	ch := NewChannel(shortConfig(), transport, bus, metrics.New(), testLogger())
	defer ch.Disconnect()
	ch.Connect(context.Background(), Identity{UserID: "u1"})

	waitState(t, ch, notify.StateConnecting)
	for transport.latest() == nil {
		time.Sleep(time.Millisecond)
	}
	transport.latest().deliver(EventVerified, map[string]int{"unreadCount": 12})

	event := waitEvent(t, sub, eventbus.KindVerified)
	if event.Count != 12 {
		t.Errorf("expected authoritative count 12, got %d", event.Count)
	}
	waitState(t, ch, notify.StateAuthenticated)
}

func TestInboundEventsDispatchToBus(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe(
		eventbus.KindNotification,
		eventbus.KindReadSync,
		eventbus.KindAllRead,
		eventbus.KindBadgeUpdate,
	)
	defer bus.Unsubscribe(sub)

	transport := &fakeTransport{}
	ch := NewChannel(shortConfig(), transport, bus, metrics.New(), testLogger())
	defer ch.Disconnect()
	ch.Connect(context.Background(), Identity{UserID: "u1"})

	for transport.latest() == nil {
		time.Sleep(time.Millisecond)
	}
	conn := transport.latest()

	conn.deliver(EventNew, notify.Notification{ID: "n1", Type: notify.TypeOrderAssigned})
	event := waitEvent(t, sub, eventbus.KindNotification)
	if event.Notification == nil || event.Notification.ID != "n1" {
		t.Errorf("notification payload not forwarded: %+v", event.Notification)
	}

	conn.deliver(EventReadSync, map[string]string{"notificationId": "n1"})
	event = waitEvent(t, sub, eventbus.KindReadSync)
	if event.NotificationID != "n1" {
		t.Errorf("read-sync carried %q", event.NotificationID)
	}

	conn.deliver(EventBadgeUpdate, map[string]int{"count": 9})
	event = waitEvent(t, sub, eventbus.KindBadgeUpdate)
	if event.Count != 9 {
		t.Errorf("badge update carried %d", event.Count)
	}

	conn.deliver(EventAllRead, nil)
	waitEvent(t, sub, eventbus.KindAllRead)
}

func TestReconnectBudgetIsBounded(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe(eventbus.KindReconnectFailed)
	defer bus.Unsubscribe(sub)

	transport := &fakeTransport{fail: true}
	ch := NewChannel(shortConfig(), transport, bus, metrics.New(), testLogger())
	ch.Connect(context.Background(), Identity{UserID: "u1"})

	waitEvent(t, sub, eventbus.KindReconnectFailed)
	waitState(t, ch, notify.StateReconnectExhausted)

	if got := transport.dials.Load(); got != 3 {
		t.Errorf("expected exactly 3 dial attempts, got %d", got)
	}

	// Exactly one terminal signal, never more.
	select {
	case extra := <-sub.Ch:
		t.Errorf("unexpected second reconnect-failed event: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDroppedConnectionReconnects(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe(eventbus.KindDisconnected, eventbus.KindReconnected)
	defer bus.Unsubscribe(sub)

	transport := &fakeTransport{}
	ch := NewChannel(shortConfig(), transport, bus, metrics.New(), testLogger())
	defer ch.Disconnect()
	ch.Connect(context.Background(), Identity{UserID: "u1"})

	for transport.latest() == nil {
		time.Sleep(time.Millisecond)
	}
	transport.latest().Close()

	waitEvent(t, sub, eventbus.KindDisconnected)
	waitEvent(t, sub, eventbus.KindReconnected)

	if transport.dials.Load() < 2 {
		t.Errorf("expected a second dial after the drop, got %d", transport.dials.Load())
	}
}

func TestConnectIsIdempotentWhileActive(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe(eventbus.KindConnected)
	defer bus.Unsubscribe(sub)

	transport := &fakeTransport{}
	ch := NewChannel(shortConfig(), transport, bus, metrics.New(), testLogger())
	defer ch.Disconnect()

	ch.Connect(context.Background(), Identity{UserID: "u1"})
	waitEvent(t, sub, eventbus.KindConnected)
	ch.Connect(context.Background(), Identity{UserID: "u1"})

	time.Sleep(20 * time.Millisecond)
	if got := transport.dials.Load(); got != 1 {
		t.Errorf("second Connect must be a no-op, saw %d dials", got)
	}
}

func TestOutboundEmitsAreFireAndForget(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe(eventbus.KindConnected)
	defer bus.Unsubscribe(sub)

	transport := &fakeTransport{}
	ch := NewChannel(shortConfig(), transport, bus, metrics.New(), testLogger())
	defer ch.Disconnect()
	ch.Connect(context.Background(), Identity{UserID: "u1"})
	waitEvent(t, sub, eventbus.KindConnected)

	ch.MarkRead("n1")
	ch.MarkAllRead()
	ch.Clicked("n1")

	writes := transport.latest().written()
	events := make([]string, 0, len(writes))
	for _, w := range writes {
		events = append(events, w.Event)
	}
	want := []string{EventAuthenticate, EventMarkRead, EventMarkAllRead, EventClicked}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("frame %d: expected %s, got %s", i, want[i], events[i])
		}
	}
}

func TestEmitWhileDisconnectedIsANoOp(t *testing.T) {
	bus := eventbus.New()
	transport := &fakeTransport{fail: true}
	ch := NewChannel(shortConfig(), transport, bus, metrics.New(), testLogger())

	// Never connected: emits must not panic or block.
	ch.MarkRead("n1")
	ch.MarkAllRead()
}
