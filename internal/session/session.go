package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dev-Codn/notificationfeb/internal/backend"
	"github.com/Dev-Codn/notificationfeb/internal/config"
	"github.com/Dev-Codn/notificationfeb/internal/eventbus"
	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/metrics"
	"github.com/Dev-Codn/notificationfeb/internal/notify"
	"github.com/Dev-Codn/notificationfeb/internal/platform"
	"github.com/Dev-Codn/notificationfeb/internal/port"
	"github.com/Dev-Codn/notificationfeb/internal/push"
	"github.com/Dev-Codn/notificationfeb/internal/realtime"
	"github.com/Dev-Codn/notificationfeb/internal/syncengine"
)

// Options injects the pieces a host application controls: the platform
// capabilities, an optional transport/port override for tests, and the
// navigation hook invoked when the worker routes a notification click here.
type Options struct {
	Capabilities platform.Capabilities
	Transport    realtime.Transport
	Port         port.Port
	OnNavigate   func(url string)
}

// Session binds the engine's components into one per-user object: created at
// login, disposed at logout. It is the only public surface consumed by UI.
type Session struct {
	cfg     *config.Config
	userID  string
	logger  *logger.Logger
	metrics *metrics.Metrics

	bus     *eventbus.Bus
	backend *backend.Client
	channel *realtime.Channel
	engine  *syncengine.Engine
	pushMgr *push.Manager
	msgPort port.Port

	onNavigate func(url string)
}

// New wires a session for the given user. Nothing connects until Start.
func New(cfg *config.Config, userID string, opts Options, log *logger.Logger) *Session {
	s := &Session{
		cfg:        cfg,
		userID:     userID,
		logger:     log.WithComponent("session"),
		metrics:    metrics.New(),
		bus:        eventbus.New(),
		onNavigate: opts.OnNavigate,
	}
	if s.onNavigate == nil {
		s.onNavigate = func(string) {}
	}

	s.backend = backend.NewClient(cfg.APIBaseURL, time.Duration(cfg.APITimeoutSeconds)*time.Second, log)

	transport := opts.Transport
	if transport == nil {
		transport = realtime.NewWebsocketTransport(cfg.SocketURL, cfg.SocketWriteTimeout, cfg.SocketPingInterval)
	}
	s.channel = realtime.NewChannel(realtime.Config{
		InitialDelay: cfg.ReconnectInitialDelay,
		MaxDelay:     cfg.ReconnectMaxDelay,
		MaxAttempts:  cfg.ReconnectMaxAttempts,
	}, transport, s.bus, s.metrics, log)

	s.engine = syncengine.New(syncengine.Config{
		PendingPollLimit:  cfg.PendingPollLimit,
		CatchUpSurfaceMax: cfg.CatchUpSurfaceMax,
	}, userID, s.backend, s.channel, s.bus, s.metrics, log)

	s.pushMgr = push.NewManager(push.Config{
		WorkerScope:     cfg.WorkerScope,
		KeyFetchTimeout: cfg.PushKeyFetchTimeout,
		MaxAttempts:     cfg.MaxInitAttempts,
	}, s.backend, opts.Capabilities, s.channel.SetDeviceID, log)

	s.msgPort = opts.Port
	if s.msgPort == nil {
		// No worker context wired; messages vanish harmlessly.
		s.msgPort, _ = port.Pair()
	}
	s.msgPort.Listen(s.handleWorkerMessage)

	return s
}

// Start connects the realtime channel and kicks off push initialization. The
// two are independent: a push failure never prevents the channel from
// connecting, and vice versa.
func (s *Session) Start(ctx context.Context) {
	s.channel.Connect(ctx, realtime.Identity{
		UserID:   s.userID,
		DeviceID: s.pushMgr.DeviceID(),
		Info: notify.DeviceInfo{
			DeviceType: platform.DetectDeviceType(),
			DeviceName: platform.DetectDeviceName(),
		},
	})

	go s.pushMgr.Initialize(ctx, s.userID)
}

// Close disposes the session: channel, engine, bus, port.
func (s *Session) Close() {
	s.channel.Disconnect()
	s.engine.Close()
	s.bus.Close()
	s.msgPort.Close()
	s.logger.Info("session closed", slog.String("user_id", s.userID))
}

// Bus exposes the event bus for UI subscriptions (connection indicators,
// notification toasts).
func (s *Session) Bus() *eventbus.Bus {
	return s.bus
}

// Metrics exposes the session's metric registry for optional scraping.
func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

// State reports the current session state snapshot. Exhausted reconnection
// and permission denial are discoverable here, never via intrusive alerts.
func (s *Session) State() notify.SessionState {
	return notify.SessionState{
		UserID:                 s.userID,
		DeviceID:               s.pushMgr.DeviceID(),
		ConnectionState:        s.channel.State(),
		UnreadCount:            s.engine.UnreadCount(),
		InitializationAttempts: s.pushMgr.Attempts(),
	}
}

// UnreadCount returns the reconciled local unread count.
func (s *Session) UnreadCount() int {
	return s.engine.UnreadCount()
}

// MarkAsRead marks one notification read, optimistically and write-through.
func (s *Session) MarkAsRead(ctx context.Context, notificationID string) {
	s.engine.MarkAsRead(ctx, notificationID)
	s.mirrorBadge(ctx)
}

// MarkAllAsRead marks everything read.
func (s *Session) MarkAllAsRead(ctx context.Context) {
	s.engine.MarkAllAsRead(ctx)
	s.mirrorBadge(ctx)
}

// GetUnread fetches pending notifications, best effort.
func (s *Session) GetUnread(ctx context.Context) []notify.Notification {
	return s.engine.GetUnread(ctx)
}

// GetHistory fetches past notifications, best effort.
func (s *Session) GetHistory(ctx context.Context, limit, offset int) []notify.Notification {
	return s.engine.GetHistory(ctx, limit, offset)
}

// ForegroundVisible runs the missed-notification catch-up. The host calls
// this whenever the application regains foreground visibility.
func (s *Session) ForegroundVisible(ctx context.Context) {
	s.engine.CatchUp(ctx)
	s.mirrorBadge(ctx)
}

// WorkerVersion asks the background worker for its build version.
func (s *Session) WorkerVersion(ctx context.Context) (string, error) {
	reply, err := s.msgPort.Request(ctx, port.Message{Type: port.TypeGetVersion})
	if err != nil {
		return "", err
	}
	return reply.Version, nil
}

// SkipWaiting asks a pending worker update to activate immediately.
func (s *Session) SkipWaiting(ctx context.Context) {
	if err := s.msgPort.Post(ctx, port.Message{Type: port.TypeSkipWaiting}); err != nil {
		s.logger.Debug("skip-waiting post failed", slog.String("error", err.Error()))
	}
}

// mirrorBadge pushes the current count to the worker so the platform badge
// stays in step with foreground state.
func (s *Session) mirrorBadge(ctx context.Context) {
	count := s.engine.UnreadCount()
	msg := port.Message{Type: port.TypeUpdateBadge, Count: count}
	if count == 0 {
		msg = port.Message{Type: port.TypeClearBadge}
	}
	if err := s.msgPort.Post(ctx, msg); err != nil {
		s.logger.Debug("badge mirror failed", slog.String("error", err.Error()))
	}
}

// handleWorkerMessage consumes messages posted by the background worker.
func (s *Session) handleWorkerMessage(ctx context.Context, msg port.Message) *port.Message {
	switch msg.Type {
	case port.TypeNotificationClicked:
		s.logger.Debug("routing notification click",
			slog.String("notification_id", msg.NotificationID),
			slog.String("url", msg.URL))
		s.engine.NotifyClicked(msg.NotificationID)
		s.onNavigate(msg.URL)
	default:
	}
	return nil
}
