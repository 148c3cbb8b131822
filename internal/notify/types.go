package notify

import "time"

// NotificationType is the closed set of event kinds the backend produces.
type NotificationType string

const (
	TypeOrderAssigned   NotificationType = "order_assigned"
	TypeOrderCompleted  NotificationType = "order_completed"
	TypeOrderCancelled  NotificationType = "order_cancelled"
	TypePaymentReceived NotificationType = "payment_received"
	TypeSystemUpdate    NotificationType = "system_update"
)

// Priority of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is created by the backend; the engine only reads it or flips
// IsRead/ReadAt through write-through calls. It never originates one.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	TargetURL string            `json:"targetUrl,omitempty"`
	Priority  Priority          `json:"priority"`
	IsRead    bool              `json:"isRead"`
	ReadAt    *time.Time        `json:"readAt,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// DeviceType is derived from platform inspection, never user input.
type DeviceType string

const (
	DeviceAndroid DeviceType = "android"
	DeviceIOS     DeviceType = "ios"
	DeviceDesktop DeviceType = "desktop"
	DeviceTablet  DeviceType = "tablet"
)

// SubscriptionKeys carries the client's asymmetric keys for push encryption.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is the platform push subscription descriptor.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// DeviceInfo is produced once per successful subscription attempt and is owned
// by the backend once sent; the client keeps only the returned device ID.
type DeviceInfo struct {
	DeviceType    DeviceType        `json:"deviceType"`
	DeviceName    string            `json:"deviceName,omitempty"`
	Subscription  *PushSubscription `json:"subscription,omitempty"`
	PlatformToken string            `json:"platformToken,omitempty"`
}

// ConnectionState of the realtime channel.
type ConnectionState string

const (
	StateDisconnected       ConnectionState = "disconnected"
	StateConnecting         ConnectionState = "connecting"
	StateAuthenticated      ConnectionState = "authenticated"
	StateReconnecting       ConnectionState = "reconnecting"
	StateReconnectExhausted ConnectionState = "reconnect_exhausted"
)

// PushAction is a button rendered on a platform notification.
type PushAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// PushPayload is the producer-defined JSON shape delivered over push transport.
type PushPayload struct {
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	Icon               string            `json:"icon,omitempty"`
	Badge              string            `json:"badge,omitempty"`
	Tag                string            `json:"tag,omitempty"`
	RequireInteraction bool              `json:"requireInteraction,omitempty"`
	Vibrate            []int             `json:"vibrate,omitempty"`
	Data               map[string]string `json:"data,omitempty"`
	Actions            []PushAction      `json:"actions,omitempty"`
	BadgeCount         *int              `json:"badgeCount,omitempty"`
}
