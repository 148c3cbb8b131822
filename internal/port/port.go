package port

import (
	"context"
	"errors"
	"sync"
)

// ErrNoReply is returned by Request when the peer's handler produced no reply.
var ErrNoReply = errors.New("port: no reply")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("port: closed")

// Handler consumes an inbound message. A non-nil return value is delivered as
// the reply when the message arrived via Request.
type Handler func(ctx context.Context, msg Message) *Message

// Port is one end of an asynchronous message channel between the foreground
// session and the background worker. All cross-context interaction goes
// through a Port; there is never a direct call.
type Port interface {
	// Post sends fire-and-forget.
	Post(ctx context.Context, msg Message) error
	// Request sends and waits for the peer handler's reply.
	Request(ctx context.Context, msg Message) (Message, error)
	// Listen installs the inbound handler. Call once, before traffic.
	Listen(h Handler)
	Close() error
}

// Pair returns two connected in-process ports. Used in tests and in hosts
// that run both contexts inside one process; production deployments bridge
// the contexts over NATS instead.
func Pair() (Port, Port) {
	a := &procPort{}
	b := &procPort{}
	a.peer = b
	b.peer = a
	return a, b
}

type procPort struct {
	mu      sync.RWMutex
	handler Handler
	closed  bool
	peer    *procPort
}

func (p *procPort) Listen(h Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *procPort) deliver(ctx context.Context, msg Message) *Message {
	p.mu.RLock()
	h := p.handler
	closed := p.closed
	p.mu.RUnlock()
	if closed || h == nil {
		return nil
	}
	return h(ctx, msg)
}

func (p *procPort) Post(ctx context.Context, msg Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	// Asynchronous like a real postMessage: the sender never observes the
	// peer's processing.
	go p.peer.deliver(context.WithoutCancel(ctx), msg)
	return nil
}

func (p *procPort) Request(ctx context.Context, msg Message) (Message, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return Message{}, ErrClosed
	}

	replyCh := make(chan *Message, 1)
	go func() {
		replyCh <- p.peer.deliver(ctx, msg)
	}()

	select {
	case reply := <-replyCh:
		if reply == nil {
			return Message{}, ErrNoReply
		}
		return *reply, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (p *procPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
