package syncengine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Dev-Codn/notificationfeb/internal/backend"
	"github.com/Dev-Codn/notificationfeb/internal/eventbus"
	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/metrics"
	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

// Backend is the slice of the REST client the engine writes through to.
type Backend interface {
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Pending(ctx context.Context, userID string, limit int) (*backend.PendingResult, error)
	History(ctx context.Context, userID string, limit, offset int) ([]notify.Notification, error)
}

// ChannelNotifier is the outbound, fire-and-forget side of the realtime
// channel used for instant multi-tab/device sync.
type ChannelNotifier interface {
	MarkRead(notificationID string)
	MarkAllRead()
	Clicked(notificationID string)
}

// Config bounds the catch-up poll.
type Config struct {
	PendingPollLimit  int // page size for the pending poll
	CatchUpSurfaceMax int // synthetic events surfaced per catch-up, to avoid flooding the UI
}

// Engine is the reconciliation authority for unread-count state. It consumes
// events from the realtime channel, catch-up polls, and worker messages, and
// exposes the read/mark-read operations UI calls through the session.
//
// Ordering rule: absolute server corrections (verified, badge-update) always
// overwrite the local count; local deltas never merge with them.
type Engine struct {
	cfg     Config
	userID  string
	backend Backend
	channel ChannelNotifier
	bus     *eventbus.Bus
	metrics *metrics.Metrics
	logger  *logger.Logger

	mu    sync.Mutex
	count int

	sub  *eventbus.Subscriber
	done chan struct{}
}

// New creates the engine and starts consuming channel events from the bus.
func New(cfg Config, userID string, be Backend, ch ChannelNotifier, bus *eventbus.Bus, m *metrics.Metrics, log *logger.Logger) *Engine {
	e := &Engine{
		cfg:     cfg,
		userID:  userID,
		backend: be,
		channel: ch,
		bus:     bus,
		metrics: m,
		logger:  log.WithComponent("syncengine"),
		done:    make(chan struct{}),
	}

	e.sub = bus.Subscribe(
		eventbus.KindNotification,
		eventbus.KindReadSync,
		eventbus.KindAllRead,
		eventbus.KindBadgeUpdate,
		eventbus.KindVerified,
	)
	go e.consume()
	return e
}

// Close stops the engine's bus consumption.
func (e *Engine) Close() {
	select {
	case <-e.done:
		return
	default:
	}
	close(e.done)
	e.bus.Unsubscribe(e.sub)
}

func (e *Engine) consume() {
	for {
		select {
		case event, ok := <-e.sub.Ch:
			if !ok {
				return
			}
			e.apply(event)
		case <-e.done:
			return
		}
	}
}

// apply folds one bus event into the unread count. Per-event idempotence is
// best effort: the same backend event can arrive via both socket and push, and
// the count self-corrects on the next authoritative resync.
func (e *Engine) apply(event eventbus.Event) {
	switch event.Kind {
	case eventbus.KindNotification:
		if event.Synthetic {
			return
		}
		e.adjust(+1)
	case eventbus.KindReadSync:
		e.adjust(-1)
	case eventbus.KindAllRead:
		e.setCount(0)
	case eventbus.KindBadgeUpdate, eventbus.KindVerified:
		// Authoritative correction: overwrite, never merge.
		e.setCount(event.Count)
	}
}

func (e *Engine) adjust(delta int) {
	e.mu.Lock()
	e.count = notify.ClampCount(e.count + delta)
	count := e.count
	e.mu.Unlock()
	e.metrics.BadgeValue.Set(float64(count))
}

func (e *Engine) setCount(n int) {
	e.mu.Lock()
	e.count = notify.ClampCount(n)
	count := e.count
	e.mu.Unlock()
	e.metrics.BadgeValue.Set(float64(count))
}

// UnreadCount returns the current local count, the single source of truth
// driving the platform badge.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// MarkAsRead optimistically decrements the count, then issues both the channel
// notice and the HTTP write-through so the mutation is durable even if the
// socket is down. Network failures are logged, never surfaced.
func (e *Engine) MarkAsRead(ctx context.Context, notificationID string) {
	e.adjust(-1)
	e.channel.MarkRead(notificationID)

	if err := e.backend.MarkRead(ctx, notificationID, e.userID); err != nil {
		e.logger.Warn("mark-read write-through failed",
			slog.String("notification_id", notificationID),
			slog.String("error", err.Error()))
	}
}

// MarkAllAsRead zeroes the count and writes through. Idempotent: a call with
// an already-zero count issues no further writes.
func (e *Engine) MarkAllAsRead(ctx context.Context) {
	e.mu.Lock()
	already := e.count == 0
	e.count = 0
	e.mu.Unlock()
	e.metrics.BadgeValue.Set(0)
	if already {
		return
	}

	e.channel.MarkAllRead()
	if err := e.backend.MarkAllRead(ctx, e.userID); err != nil {
		e.logger.Warn("mark-all-read write-through failed", slog.String("error", err.Error()))
	}
}

// NotifyClicked forwards a click over the channel, fire-and-forget.
func (e *Engine) NotifyClicked(notificationID string) {
	e.channel.Clicked(notificationID)
}

// GetUnread fetches the current pending notifications. Best-effort: a network
// failure returns an empty result, never an error to the caller.
func (e *Engine) GetUnread(ctx context.Context) []notify.Notification {
	result, err := e.backend.Pending(ctx, e.userID, e.cfg.PendingPollLimit)
	if err != nil {
		e.logger.Warn("pending fetch failed", slog.String("error", err.Error()))
		return nil
	}
	return result.Notifications
}

// GetHistory fetches a page of past notifications. Best-effort, like GetUnread.
func (e *Engine) GetHistory(ctx context.Context, limit, offset int) []notify.Notification {
	items, err := e.backend.History(ctx, e.userID, limit, offset)
	if err != nil {
		e.logger.Warn("history fetch failed", slog.String("error", err.Error()))
		return nil
	}
	return items
}

// CatchUp performs the missed-notification poll, called whenever the host
// application regains foreground visibility. At most a few pending items are
// surfaced as synthetic events to avoid flooding the UI; the server-reported
// total overwrites the local count.
func (e *Engine) CatchUp(ctx context.Context) {
	log := e.logger.WithContext(logger.WithOperation(ctx, "catch_up"))

	result, err := e.backend.Pending(ctx, e.userID, e.cfg.PendingPollLimit)
	if err != nil {
		log.Warn("catch-up poll failed", slog.String("error", err.Error()))
		return
	}

	surfaced := 0
	for i := range result.Notifications {
		if surfaced >= e.cfg.CatchUpSurfaceMax {
			break
		}
		e.bus.Publish(eventbus.Event{
			Kind:         eventbus.KindNotification,
			Notification: &result.Notifications[i],
			Synthetic:    true,
		})
		surfaced++
	}

	e.setCount(result.Total)
	log.Debug("catch-up complete",
		slog.Int("pending", len(result.Notifications)),
		slog.Int("surfaced", surfaced),
		slog.Int("total", result.Total))
}
