package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Dev-Codn/notificationfeb/internal/backend"
	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/metrics"
	"github.com/Dev-Codn/notificationfeb/internal/platform"
	"github.com/Dev-Codn/notificationfeb/internal/port"
)

// Backend is the slice of the REST client the worker needs.
type Backend interface {
	Pending(ctx context.Context, userID string, limit int) (*backend.PendingResult, error)
	Dismissed(ctx context.Context, notificationID string) error
}

// Lifecycle is the worker's state: install → activate → running.
type Lifecycle string

const (
	LifecycleNew       Lifecycle = "new"
	LifecycleInstalled Lifecycle = "installed"
	LifecycleActive    Lifecycle = "active"
)

// ActionDismiss ends click processing with no side effect.
const ActionDismiss = "dismiss"

// Config tunes one worker instance.
type Config struct {
	Version         string   // worker build version, reported over the port
	CacheVersion    string   // version tag for the asset cache
	UserID          string   // the authenticated session this worker serves
	AssetBaseURL    string   // origin the asset manifest is pre-cached from
	AssetManifest   []string // fixed app-shell and icon paths to pre-cache
	ShellPath       string   // cached app shell used as the last fetch fallback
	APIPrefix       string   // request paths denoting API calls
	ResyncCronSpec  string   // schedule for the periodic background resync
	ResyncRenderMax int      // catch-up notifications rendered per resync
	PendingLimit    int      // page size for the resync pending fetch
}

// ClickEvent describes a user interaction with a rendered notification.
type ClickEvent struct {
	NotificationID string
	Action         string // empty means default activation
	Tag            string
	Data           map[string]string
}

// Worker is the background execution context: it caches assets for offline
// use, renders push events, routes notification clicks back to an open window,
// and resynchronizes state when the foreground app is not running.
//
// It shares no memory with the foreground; all interaction crosses the
// message port.
type Worker struct {
	cfg        Config
	backend    Backend
	caps       platform.Capabilities
	msgPort    port.Port
	store      *CacheStore
	httpClient *http.Client
	cron       *cron.Cron
	metrics    *metrics.Metrics
	logger     *logger.Logger

	mu    sync.Mutex
	state Lifecycle
	cache *AssetCache
}

// New creates a worker. Run drives its lifecycle.
func New(cfg Config, be Backend, caps platform.Capabilities, msgPort port.Port, m *metrics.Metrics, log *logger.Logger) *Worker {
	return &Worker{
		cfg:     cfg,
		backend: be,
		caps:    caps.Normalize(),
		msgPort: msgPort,
		store:   NewCacheStore(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: m,
		logger:  log.WithComponent("worker"),
		state:   LifecycleNew,
	}
}

// Run installs, activates, wires the control channel, and starts the periodic
// resync schedule. It returns once the worker is running.
func (w *Worker) Run(ctx context.Context) error {
	w.Install(ctx)
	w.Activate(ctx)

	w.msgPort.Listen(w.handleControl)

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.cfg.ResyncCronSpec, func() {
		w.Resync(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid resync schedule %q: %w", w.cfg.ResyncCronSpec, err)
	}
	w.cron.Start()

	w.logger.Info("worker running",
		slog.String("version", w.cfg.Version),
		slog.String("cache_version", w.cfg.CacheVersion))
	return nil
}

// Close stops the schedule and the port.
func (w *Worker) Close() {
	if w.cron != nil {
		w.cron.Stop()
	}
	w.msgPort.Close()
}

// State returns the current lifecycle state.
func (w *Worker) State() Lifecycle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Cache returns the active versioned asset cache.
func (w *Worker) Cache() *AssetCache {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cache
}

// Interceptor returns the fetch-policy RoundTripper bound to the active cache.
func (w *Worker) Interceptor(base http.RoundTripper) *Interceptor {
	return NewInterceptor(base, w.Cache(), w.cfg.APIPrefix, w.cfg.ShellPath, w.metrics, w.logger)
}

// Install pre-caches the fixed asset manifest under the version-tagged cache.
// Individual fetch failures are logged and skipped; an incomplete cache still
// beats none offline.
func (w *Worker) Install(ctx context.Context) {
	cache := w.store.Open(w.cfg.CacheVersion)

	cached := 0
	for _, path := range w.cfg.AssetManifest {
		asset, err := w.fetchAsset(ctx, path)
		if err != nil {
			w.logger.Warn("precache failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		cache.Put(path, asset)
		cached++
	}

	w.mu.Lock()
	w.cache = cache
	w.state = LifecycleInstalled
	w.mu.Unlock()

	w.logger.Info("install complete",
		slog.Int("cached", cached),
		slog.Int("manifest", len(w.cfg.AssetManifest)))
}

// Activate deletes caches from older versions and claims existing clients, so
// an upgrade takes effect without a reload.
func (w *Worker) Activate(ctx context.Context) {
	deleted := w.store.DeleteOthers(w.cfg.CacheVersion)

	w.mu.Lock()
	w.state = LifecycleActive
	w.mu.Unlock()

	w.logger.Info("activate complete", slog.Int("stale_caches_deleted", deleted))
}

func (w *Worker) fetchAsset(ctx context.Context, path string) (CachedAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.AssetBaseURL+path, nil)
	if err != nil {
		return CachedAsset{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CachedAsset{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CachedAsset{}, fmt.Errorf("asset fetch returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CachedAsset{}, err
	}
	return CachedAsset{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// HandlePush renders one received push payload as a platform notification and
// mirrors any carried badge count, best effort.
func (w *Worker) HandlePush(ctx context.Context, data []byte) {
	payload := ParsePushPayload(data)
	opts := displayOptions(payload)

	if err := w.caps.Display.Show(ctx, payload.Title, opts); err != nil {
		w.logger.Warn("notification render failed",
			slog.String("title", payload.Title),
			slog.String("error", err.Error()))
		return
	}
	w.metrics.PushesRendered.Inc()

	if payload.BadgeCount != nil {
		if err := w.caps.Badge.Set(ctx, *payload.BadgeCount); err != nil {
			w.logger.Debug("badge update failed", slog.String("error", err.Error()))
		}
	}
}

// HandleClick closes the notification and routes the interaction. A dismiss
// action ends processing; any other action resolves the target URL, focuses an
// existing app window (posting a NOTIFICATION_CLICKED message for the
// foreground to route), or opens a new window.
func (w *Worker) HandleClick(ctx context.Context, click ClickEvent) {
	tag := click.Tag
	if tag == "" {
		tag = click.NotificationID
	}
	if err := w.caps.Display.Close(ctx, tag); err != nil {
		w.logger.Debug("notification close failed", slog.String("error", err.Error()))
	}

	if click.Action == ActionDismiss {
		return
	}

	targetURL := resolveTargetURL(click.Data)

	windows, err := w.caps.Windows.List(ctx)
	if err != nil {
		w.logger.Warn("window lookup failed", slog.String("error", err.Error()))
	}
	if len(windows) > 0 {
		win := windows[0]
		if err := win.Focus(ctx); err != nil {
			w.logger.Warn("window focus failed", slog.String("error", err.Error()))
		}
		msg, _ := json.Marshal(port.Message{
			Type:           port.TypeNotificationClicked,
			URL:            targetURL,
			NotificationID: click.NotificationID,
			Action:         click.Action,
		})
		if err := win.PostMessage(ctx, msg); err != nil {
			w.logger.Warn("click message post failed", slog.String("error", err.Error()))
		}
		return
	}

	if err := w.caps.Windows.Open(ctx, targetURL); err != nil {
		w.logger.Warn("window open failed",
			slog.String("url", targetURL),
			slog.String("error", err.Error()))
	}
}

// HandleClose reports a dismissal for analytics, fire-and-forget.
func (w *Worker) HandleClose(ctx context.Context, notificationID string) {
	if err := w.backend.Dismissed(ctx, notificationID); err != nil {
		w.logger.Debug("dismissal report failed",
			slog.String("notification_id", notificationID),
			slog.String("error", err.Error()))
	}
}

// Resync is the fallback path for platforms that deliver push unreliably in
// the background: fetch a small pending batch, render a few catch-up
// notifications, and set the badge to the authoritative count.
func (w *Worker) Resync(ctx context.Context) {
	result, err := w.backend.Pending(ctx, w.cfg.UserID, w.cfg.PendingLimit)
	if err != nil {
		w.logger.Warn("background resync failed", slog.String("error", err.Error()))
		return
	}

	rendered := 0
	for _, n := range result.Notifications {
		if rendered >= w.cfg.ResyncRenderMax {
			break
		}
		opts := platform.DisplayOptions{
			Body: n.Body,
			Icon: defaultIcon,
			Tag:  n.ID,
			Data: map[string]string{"url": n.TargetURL},
		}
		if err := w.caps.Display.Show(ctx, n.Title, opts); err != nil {
			w.logger.Debug("catch-up render failed", slog.String("error", err.Error()))
			continue
		}
		w.metrics.PushesRendered.Inc()
		rendered++
	}

	if err := w.caps.Badge.Set(ctx, result.Total); err != nil {
		w.logger.Debug("badge update failed", slog.String("error", err.Error()))
	}

	w.logger.Debug("background resync complete",
		slog.Int("pending", len(result.Notifications)),
		slog.Int("rendered", rendered),
		slog.Int("total", result.Total))
}

// handleControl serves the worker's control channel.
func (w *Worker) handleControl(ctx context.Context, msg port.Message) *port.Message {
	switch msg.Type {
	case port.TypeSkipWaiting:
		// Force immediate activation of a pending update.
		w.Activate(ctx)
		return nil
	case port.TypeGetVersion:
		return &port.Message{Type: port.TypeVersion, Version: w.cfg.Version}
	case port.TypeClearBadge:
		if err := w.caps.Badge.Clear(ctx); err != nil {
			w.logger.Debug("badge clear failed", slog.String("error", err.Error()))
		}
		return nil
	case port.TypeUpdateBadge:
		if err := w.caps.Badge.Set(ctx, msg.Count); err != nil {
			w.logger.Debug("badge update failed", slog.String("error", err.Error()))
		}
		return nil
	default:
		w.logger.Debug("ignoring unknown control message", slog.String("type", string(msg.Type)))
		return nil
	}
}

// resolveTargetURL extracts the deep link from the notification's data.
func resolveTargetURL(data map[string]string) string {
	if data == nil {
		return "/"
	}
	if url := data["url"]; url != "" {
		return url
	}
	if url := data["targetUrl"]; url != "" {
		return url
	}
	return "/"
}
