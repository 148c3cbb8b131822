package port

// Type enumerates the worker↔foreground control protocol.
type Type string

const (
	// Worker → foreground: a platform notification was clicked and the
	// foreground should route to its URL.
	TypeNotificationClicked Type = "NOTIFICATION_CLICKED"

	// Foreground → worker.
	TypeSkipWaiting Type = "SKIP_WAITING"
	TypeGetVersion  Type = "GET_VERSION"
	TypeClearBadge  Type = "CLEAR_BADGE"
	TypeUpdateBadge Type = "UPDATE_BADGE"

	// Worker reply to TypeGetVersion.
	TypeVersion Type = "VERSION"
)

// Message is one unit of cross-context communication. The two execution
// contexts share no memory; this is the entire surface between them.
type Message struct {
	Type           Type   `json:"type"`
	URL            string `json:"url,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
	Action         string `json:"action,omitempty"`
	Count          int    `json:"count,omitempty"`
	Version        string `json:"version,omitempty"`
}
