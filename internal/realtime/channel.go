package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Dev-Codn/notificationfeb/internal/eventbus"
	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/metrics"
	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

// Config bounds the channel's reconnection behavior.
type Config struct {
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // cap for the growing delay
	MaxAttempts  int           // consecutive dial failures before giving up
}

// Identity is sent in the authenticate handshake on every (re)connect.
type Identity struct {
	UserID   string
	DeviceID string // may be empty until the device is subscribed
	Info     notify.DeviceInfo
}

type authPayload struct {
	UserID     string            `json:"userId"`
	DeviceID   string            `json:"deviceId,omitempty"`
	DeviceInfo notify.DeviceInfo `json:"deviceInfo"`
}

type verifiedPayload struct {
	UnreadCount int `json:"unreadCount"`
}

type notificationIDPayload struct {
	NotificationID string `json:"notificationId"`
}

type badgePayload struct {
	Count int `json:"count"`
}

// Channel owns the persistent realtime connection: connect, authenticate,
// bounded auto-reconnect, and dispatch of inbound events onto the bus.
//
// The connection is a single shared resource per session. A second Connect
// while one is active is a no-op guarded by an in-progress flag, not a queued
// retry.
type Channel struct {
	cfg       Config
	transport Transport
	bus       *eventbus.Bus
	metrics   *metrics.Metrics
	logger    *logger.Logger

	mu            sync.Mutex
	active        bool
	identity      Identity
	state         notify.ConnectionState
	conn          Conn
	cancel        context.CancelFunc
	everConnected bool
}

// NewChannel creates a channel. It does not connect until Connect is called.
func NewChannel(cfg Config, transport Transport, bus *eventbus.Bus, m *metrics.Metrics, log *logger.Logger) *Channel {
	return &Channel{
		cfg:       cfg,
		transport: transport,
		bus:       bus,
		metrics:   m,
		logger:    log.WithComponent("realtime"),
		state:     notify.StateDisconnected,
	}
}

// Connect starts the connection loop for the given identity. Idempotent while
// a loop is active.
func (c *Channel) Connect(ctx context.Context, identity Identity) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.identity = identity

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
}

// Disconnect tears the connection down and stops reconnecting.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.active = false
	c.conn = nil
	c.cancel = nil
	c.state = notify.StateDisconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
}

// State returns the current connection state.
func (c *Channel) State() notify.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetDeviceID records the backend-assigned device ID for subsequent
// authenticate handshakes. The device may subscribe after the channel is
// already connected.
func (c *Channel) SetDeviceID(deviceID string) {
	c.mu.Lock()
	c.identity.DeviceID = deviceID
	c.mu.Unlock()
}

// MarkRead notifies the backend over the channel that a notification was read.
// Fire-and-forget; the HTTP write-through covers a disconnected channel.
func (c *Channel) MarkRead(notificationID string) {
	c.emit(EventMarkRead, notificationIDPayload{NotificationID: notificationID})
}

// MarkAllRead notifies the backend that every notification was read.
func (c *Channel) MarkAllRead() {
	c.emit(EventMarkAllRead, nil)
}

// Clicked reports a notification click.
func (c *Channel) Clicked(notificationID string) {
	c.emit(EventClicked, notificationIDPayload{NotificationID: notificationID})
}

func (c *Channel) emit(event string, payload any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteFrame(NewFrame(event, payload)); err != nil {
		c.logger.Warn("outbound emit failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (c *Channel) setState(state notify.ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Channel) run(ctx context.Context) {
	failures := 0
	delay := c.cfg.InitialDelay

	for {
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		first := !c.everConnected
		c.mu.Unlock()
		if first {
			c.setState(notify.StateConnecting)
		} else {
			c.setState(notify.StateReconnecting)
		}

		conn, err := c.transport.Dial(ctx)
		if err == nil {
			err = c.attach(conn)
		}

		if err == nil {
			failures = 0
			delay = c.cfg.InitialDelay
			if first {
				c.bus.Publish(eventbus.Event{Kind: eventbus.KindConnected})
			} else {
				c.bus.Publish(eventbus.Event{Kind: eventbus.KindReconnected})
			}

			c.readLoop(ctx, conn)
			c.detach(conn)
			if ctx.Err() != nil {
				return
			}

			c.setState(notify.StateDisconnected)
			c.bus.Publish(eventbus.Event{Kind: eventbus.KindDisconnected})
			c.logger.Warn("connection dropped, scheduling reconnect")
		} else {
			if ctx.Err() != nil {
				return
			}
			failures++
			c.metrics.ReconnectAttempts.Inc()
			c.logger.Warn("connect attempt failed",
				slog.Int("attempt", failures),
				slog.Int("max_attempts", c.cfg.MaxAttempts),
				slog.String("error", err.Error()))

			if failures >= c.cfg.MaxAttempts {
				// Terminal: the session keeps working in degraded,
				// poll-only mode rather than failing.
				c.setState(notify.StateReconnectExhausted)
				c.bus.Publish(eventbus.Event{Kind: eventbus.KindReconnectFailed})
				c.logger.Error("reconnect budget exhausted, giving up")
				return
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		delay *= 2
		if delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}
}

// attach sends the authenticate handshake and installs the connection for
// outbound emits.
func (c *Channel) attach(conn Conn) error {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()

	frame := NewFrame(EventAuthenticate, authPayload{
		UserID:     identity.UserID,
		DeviceID:   identity.DeviceID,
		DeviceInfo: identity.Info,
	})
	if err := conn.WriteFrame(frame); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.everConnected = true
	c.mu.Unlock()
	return nil
}

func (c *Channel) detach(conn Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Channel) readLoop(ctx context.Context, conn Conn) {
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopped:
		}
	}()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return
		}
		c.dispatch(frame)
	}
}

// dispatch maps one inbound frame to a bus event. Corrections carrying an
// absolute count (verified, badge-update) overwrite local state downstream;
// deltas never merge with them.
func (c *Channel) dispatch(frame Frame) {
	c.metrics.EventsDispatched.WithLabelValues(frame.Event).Inc()

	switch frame.Event {
	case EventVerified:
		var p verifiedPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.logger.Warn("malformed verified payload", slog.String("error", err.Error()))
			return
		}
		c.setState(notify.StateAuthenticated)
		c.bus.Publish(eventbus.Event{Kind: eventbus.KindVerified, Count: p.UnreadCount})

	case EventNew:
		var n notify.Notification
		if err := json.Unmarshal(frame.Payload, &n); err != nil {
			c.logger.Warn("malformed notification payload", slog.String("error", err.Error()))
			return
		}
		c.bus.Publish(eventbus.Event{Kind: eventbus.KindNotification, Notification: &n})

	case EventReadSync:
		var p notificationIDPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return
		}
		c.bus.Publish(eventbus.Event{Kind: eventbus.KindReadSync, NotificationID: p.NotificationID})

	case EventAllRead:
		c.bus.Publish(eventbus.Event{Kind: eventbus.KindAllRead})

	case EventBadgeUpdate:
		var p badgePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return
		}
		c.bus.Publish(eventbus.Event{Kind: eventbus.KindBadgeUpdate, Count: p.Count})

	default:
		c.logger.Debug("ignoring unknown event", slog.String("event", frame.Event))
	}
}
