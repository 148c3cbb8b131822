package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketTransport dials the backend's websocket endpoint. It is the
// production Transport; one Dial yields one Conn with its own keepalive loop.
type WebsocketTransport struct {
	url          string
	writeTimeout time.Duration
	pingInterval time.Duration
}

// NewWebsocketTransport creates a transport for the given endpoint.
func NewWebsocketTransport(url string, writeTimeout, pingInterval time.Duration) *WebsocketTransport {
	return &WebsocketTransport{
		url:          url,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// Dial establishes the websocket connection.
func (t *WebsocketTransport) Dial(ctx context.Context) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, err
	}

	c := &wsConn{
		ws:           ws,
		writeTimeout: t.writeTimeout,
		done:         make(chan struct{}),
	}
	if t.pingInterval > 0 {
		go c.pingLoop(t.pingInterval)
	}
	return c, nil
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsConn) ReadFrame() (Frame, error) {
	var frame Frame
	if err := c.ws.ReadJSON(&frame); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

func (c *wsConn) WriteFrame(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteJSON(frame)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			if c.writeTimeout > 0 {
				c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
