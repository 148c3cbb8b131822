package platform

import (
	"context"

	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

// Inert capability implementations. Used when the host platform lacks a
// capability: the feature silently disables instead of failing initialization.

type noopRegistrar struct{}

func (noopRegistrar) Register(context.Context, string) error { return nil }

type noopPermissions struct{}

func (noopPermissions) State() PermissionState { return PermissionDenied }

func (noopPermissions) Request(context.Context) (PermissionState, error) {
	return PermissionDenied, nil
}

type noopPush struct{}

func (noopPush) Existing(context.Context) (*notify.PushSubscription, error) { return nil, nil }

func (noopPush) Subscribe(context.Context, string) (*notify.PushSubscription, error) {
	return nil, nil
}

type noopDisplay struct{}

func (noopDisplay) Show(context.Context, string, DisplayOptions) error { return nil }

func (noopDisplay) Close(context.Context, string) error { return nil }

type noopBadge struct{}

func (noopBadge) Set(context.Context, int) error { return nil }

func (noopBadge) Clear(context.Context) error { return nil }

type noopWindows struct{}

func (noopWindows) List(context.Context) ([]Window, error) { return nil, nil }

func (noopWindows) Open(context.Context, string) error { return nil }
