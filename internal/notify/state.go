package notify

// SessionState is process-wide for the lifetime of one logged-in session. It is
// created on login, reset on logout, and never persisted; a reload re-derives it
// from the backend.
type SessionState struct {
	UserID                 string
	DeviceID               string // empty until the device is subscribed
	ConnectionState        ConnectionState
	UnreadCount            int
	InitializationAttempts int
}

// ClampCount keeps the unread count a non-negative integer, the invariant that
// drives the platform badge.
func ClampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
