package realtime

import (
	"context"
	"encoding/json"
)

// Wire event names, matching the backend's realtime contract.
const (
	EventAuthenticate = "authenticate"
	EventVerified     = "connection:verified"
	EventNew          = "notification:new"
	EventReadSync     = "notification:read-sync"
	EventAllRead      = "notification:all-read"
	EventBadgeUpdate  = "notification:badge-update"
	EventMarkRead     = "notification:mark-read"
	EventMarkAllRead  = "notification:mark-all-read"
	EventClicked      = "notification:clicked"
)

// Frame is one named event on the realtime channel.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame builds a frame, encoding the payload. Encoding failures return a
// payload-less frame; every payload type in this package marshals cleanly.
func NewFrame(event string, payload any) Frame {
	f := Frame{Event: event}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			f.Payload = raw
		}
	}
	return f
}

// Conn is one established realtime connection.
type Conn interface {
	// ReadFrame blocks until the next inbound frame or a connection error.
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
}

// Transport dials the realtime endpoint. The production implementation is the
// websocket transport; tests substitute scripted ones.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}
