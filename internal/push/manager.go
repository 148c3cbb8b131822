package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/notify"
	"github.com/Dev-Codn/notificationfeb/internal/platform"
)

// Backend is the slice of the REST client the manager needs.
type Backend interface {
	VapidPublicKey(ctx context.Context) (string, error)
	Subscribe(ctx context.Context, userID string, info notify.DeviceInfo) (string, error)
}

// Config bounds initialization.
type Config struct {
	WorkerScope     string        // fixed scope the background worker registers at
	KeyFetchTimeout time.Duration // bound on the VAPID key fetch
	MaxAttempts     int           // cumulative failed Initialize calls before permanent disable
}

// Manager registers the background worker, obtains the server push key,
// requests permission, creates or reuses a platform subscription, and reports
// the resulting device to the backend.
//
// Initialize is idempotent: a concurrent call while one is in flight is a
// no-op, and after the attempt cap the manager permanently disables itself.
// Only a fresh session object resets the counter.
type Manager struct {
	cfg        Config
	backend    Backend
	caps       platform.Capabilities
	onDeviceID func(string)
	logger     *logger.Logger

	mu               sync.Mutex
	inFlight         bool
	attempts         int
	disabled         bool
	permissionDenied bool
	deviceID         string
}

// NewManager creates a manager. onDeviceID is invoked once the backend assigns
// a device ID; the session uses it to update the channel's handshake identity.
func NewManager(cfg Config, be Backend, caps platform.Capabilities, onDeviceID func(string), log *logger.Logger) *Manager {
	if onDeviceID == nil {
		onDeviceID = func(string) {}
	}
	return &Manager{
		cfg:        cfg,
		backend:    be,
		caps:       caps.Normalize(),
		onDeviceID: onDeviceID,
		logger:     log.WithComponent("push"),
	}
}

// DeviceID returns the backend-assigned device ID, or empty until subscribed.
func (m *Manager) DeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceID
}

// Disabled reports whether the manager gave up for this session.
func (m *Manager) Disabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disabled
}

// Attempts returns the number of failed Initialize calls so far. The session
// state snapshot exposes it so exhaustion is observable without an alert.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Initialize runs the subscription sequence. Every step is individually
// fault-tolerant; a failure is caught, logged, and later independent steps
// still run. Nothing here ever propagates an error to the caller: push is an
// enhancement, never a dependency.
func (m *Manager) Initialize(ctx context.Context, userID string) {
	m.mu.Lock()
	if m.disabled || m.permissionDenied || m.inFlight || m.deviceID != "" {
		m.mu.Unlock()
		return
	}
	m.inFlight = true
	m.mu.Unlock()

	failed := m.initialize(ctx, userID)

	m.mu.Lock()
	m.inFlight = false
	if failed {
		m.attempts++
		if m.attempts >= m.cfg.MaxAttempts {
			m.disabled = true
			m.logger.Error("push initialization attempt cap reached, disabling for this session",
				slog.Int("attempts", m.attempts))
		}
	}
	m.mu.Unlock()
}

func (m *Manager) initialize(ctx context.Context, userID string) (failed bool) {
	ctx = logger.WithUserID(ctx, userID)
	log := m.logger.WithContext(ctx)

	// Step 1: register the worker at its fixed scope and wait for it to
	// become active.
	if err := m.caps.Registrar.Register(ctx, m.cfg.WorkerScope); err != nil {
		log.Warn("worker registration failed",
			slog.String("scope", m.cfg.WorkerScope),
			slog.String("error", err.Error()))
		failed = true
	}

	// Step 2: fetch the server's push key, time-bounded. Failure here
	// disables push only, not the whole session.
	keyCtx, cancel := context.WithTimeout(ctx, m.cfg.KeyFetchTimeout)
	pushKey, err := m.backend.VapidPublicKey(keyCtx)
	cancel()
	if err != nil {
		log.Warn("push key fetch failed", slog.String("error", err.Error()))
		pushKey = ""
		failed = true
	}

	// Step 3: permission, short-circuiting to the cached decision.
	state := m.caps.Permissions.State()
	if state == platform.PermissionPrompt {
		state, err = m.caps.Permissions.Request(ctx)
		if err != nil {
			log.Warn("permission request failed", slog.String("error", err.Error()))
			return true
		}
	}
	if state != platform.PermissionGranted {
		// Terminal for push this session. Does not block realtime or
		// manual-refresh paths, and does not burn a retry attempt.
		m.mu.Lock()
		m.permissionDenied = true
		m.mu.Unlock()
		log.Info("notification permission not granted, push disabled",
			slog.String("state", string(state)))
		return failed
	}

	if pushKey == "" {
		return failed
	}

	// Step 4: reuse or create the subscription and report the device.
	sub, err := m.caps.Push.Existing(ctx)
	if err != nil {
		log.Warn("subscription lookup failed", slog.String("error", err.Error()))
	}
	if sub == nil {
		sub, err = m.caps.Push.Subscribe(ctx, pushKey)
		if err != nil {
			log.Warn("subscription create failed", slog.String("error", err.Error()))
			return true
		}
	}
	if sub == nil {
		log.Info("platform has no push support, push disabled")
		return failed
	}

	info := notify.DeviceInfo{
		DeviceType:   platform.DetectDeviceType(),
		DeviceName:   platform.DetectDeviceName(),
		Subscription: sub,
	}
	deviceID, err := m.backend.Subscribe(ctx, userID, info)
	if err != nil {
		log.Warn("device report failed", slog.String("error", err.Error()))
		return true
	}

	m.mu.Lock()
	m.deviceID = deviceID
	m.mu.Unlock()
	m.onDeviceID(deviceID)

	m.logger.WithContext(logger.WithDeviceID(ctx, deviceID)).Info("push subscription registered",
		slog.String("device_type", string(info.DeviceType)))
	return failed
}
