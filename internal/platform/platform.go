package platform

import (
	"context"
	"os"
	"runtime"

	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

// PermissionState is the platform's notification-permission decision.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Permissions exposes the platform notification permission. State returns the
// cached decision so callers can short-circuit without prompting again.
type Permissions interface {
	State() PermissionState
	Request(ctx context.Context) (PermissionState, error)
}

// WorkerRegistrar registers the background worker at a fixed scope and blocks
// until it is active.
type WorkerRegistrar interface {
	Register(ctx context.Context, scope string) error
}

// PushProvider creates or reuses a platform push subscription.
type PushProvider interface {
	// Existing returns the current subscription, or nil when there is none.
	Existing(ctx context.Context) (*notify.PushSubscription, error)
	// Subscribe creates a new subscription keyed to the server's public key.
	Subscribe(ctx context.Context, vapidKey string) (*notify.PushSubscription, error)
}

// DisplayOptions carries the rendering options for a platform notification.
type DisplayOptions struct {
	Body               string
	Icon               string
	Badge              string
	Tag                string
	RequireInteraction bool
	Vibrate            []int
	Data               map[string]string
	Actions            []notify.PushAction
}

// Display renders and closes platform notifications. Tag identifies a shown
// notification for later closing.
type Display interface {
	Show(ctx context.Context, title string, opts DisplayOptions) error
	Close(ctx context.Context, tag string) error
}

// Badge mirrors the unread count onto the application icon.
type Badge interface {
	Set(ctx context.Context, count int) error
	Clear(ctx context.Context) error
}

// Window is one open window belonging to the application's origin.
type Window interface {
	Focus(ctx context.Context) error
	PostMessage(ctx context.Context, data []byte) error
}

// WindowManager finds and opens application windows for click routing.
type WindowManager interface {
	List(ctx context.Context) ([]Window, error)
	Open(ctx context.Context, url string) error
}

// Capabilities bundles every injected platform dependency. Any field may be
// nil; Normalize substitutes a no-op so absence degrades instead of failing.
type Capabilities struct {
	Registrar   WorkerRegistrar
	Permissions Permissions
	Push        PushProvider
	Display     Display
	Badge       Badge
	Windows     WindowManager
}

// Normalize fills nil capabilities with inert implementations.
func (c Capabilities) Normalize() Capabilities {
	if c.Registrar == nil {
		c.Registrar = noopRegistrar{}
	}
	if c.Permissions == nil {
		c.Permissions = noopPermissions{}
	}
	if c.Push == nil {
		c.Push = noopPush{}
	}
	if c.Display == nil {
		c.Display = noopDisplay{}
	}
	if c.Badge == nil {
		c.Badge = noopBadge{}
	}
	if c.Windows == nil {
		c.Windows = noopWindows{}
	}
	return c
}

// DetectDeviceType derives the device type from platform inspection.
func DetectDeviceType() notify.DeviceType {
	switch runtime.GOOS {
	case "android":
		return notify.DeviceAndroid
	case "ios":
		return notify.DeviceIOS
	default:
		return notify.DeviceDesktop
	}
}

// DetectDeviceName builds a short human-readable device name from the
// platform string, truncated to keep the backend's column happy.
func DetectDeviceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	name := host + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
