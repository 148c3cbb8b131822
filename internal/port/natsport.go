package port

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Dev-Codn/notificationfeb/internal/logger"
)

// NATS subjects bridging the two execution contexts when the worker runs as a
// separate process.
const (
	SubjectToWorker     = "notify.port.worker"
	SubjectToForeground = "notify.port.foreground"
)

const natsRequestTimeout = 5 * time.Second

// NatsPort bridges a Port over a NATS connection. The foreground session
// posts to the worker subject and listens on the foreground subject; the
// worker process holds the mirror-image port.
type NatsPort struct {
	nc          *nats.Conn
	sendSubject string
	recvSubject string
	logger      *logger.Logger

	subscription *nats.Subscription
}

// NewForegroundPort returns the session-side port.
func NewForegroundPort(nc *nats.Conn, log *logger.Logger) *NatsPort {
	return newNatsPort(nc, SubjectToWorker, SubjectToForeground, log)
}

// NewWorkerPort returns the worker-side port.
func NewWorkerPort(nc *nats.Conn, log *logger.Logger) *NatsPort {
	return newNatsPort(nc, SubjectToForeground, SubjectToWorker, log)
}

func newNatsPort(nc *nats.Conn, send, recv string, log *logger.Logger) *NatsPort {
	return &NatsPort{
		nc:          nc,
		sendSubject: send,
		recvSubject: recv,
		logger:      log.WithComponent("nats-port"),
	}
}

// Listen subscribes the handler on the receive subject. Replies returned by
// the handler are published to the request's reply inbox when present.
func (p *NatsPort) Listen(h Handler) {
	sub, err := p.nc.Subscribe(p.recvSubject, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			p.logger.Warn("malformed port message",
				slog.String("subject", p.recvSubject),
				slog.String("error", err.Error()))
			return
		}

		reply := h(context.Background(), msg)
		if reply != nil && m.Reply != "" {
			data, err := json.Marshal(reply)
			if err != nil {
				return
			}
			if err := m.Respond(data); err != nil {
				p.logger.Warn("port reply failed", slog.String("error", err.Error()))
			}
		}
	})
	if err != nil {
		p.logger.Error("port subscribe failed",
			slog.String("subject", p.recvSubject),
			slog.String("error", err.Error()))
		return
	}
	p.subscription = sub
}

func (p *NatsPort) Post(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode port message: %w", err)
	}
	return p.nc.Publish(p.sendSubject, data)
}

func (p *NatsPort) Request(ctx context.Context, msg Message) (Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode port message: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsRequestTimeout)
		defer cancel()
	}

	resp, err := p.nc.RequestWithContext(ctx, p.sendSubject, data)
	if err != nil {
		return Message{}, fmt.Errorf("port request failed: %w", err)
	}

	var reply Message
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return Message{}, fmt.Errorf("malformed port reply: %w", err)
	}
	return reply, nil
}

// Close drains the subscription so in-flight messages finish.
func (p *NatsPort) Close() error {
	if p.subscription != nil {
		if err := p.subscription.Drain(); err != nil {
			return fmt.Errorf("failed to drain port subscription: %w", err)
		}
	}
	return nil
}
