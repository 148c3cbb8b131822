package port

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPairPost(t *testing.T) {
	a, b := Pair()

	var mu sync.Mutex
	var received []Message
	done := make(chan struct{}, 1)
	b.Listen(func(ctx context.Context, msg Message) *Message {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	if err := a.Post(context.Background(), Message{Type: TypeClearBadge}); err != nil {
		t.Fatalf("post failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Type != TypeClearBadge {
		t.Errorf("unexpected messages: %+v", received)
	}
}

func TestPairRequestReply(t *testing.T) {
	a, b := Pair()

	b.Listen(func(ctx context.Context, msg Message) *Message {
		if msg.Type != TypeGetVersion {
			return nil
		}
		return &Message{Type: TypeVersion, Version: "1.2.0"}
	})

	reply, err := a.Request(context.Background(), Message{Type: TypeGetVersion})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if reply.Type != TypeVersion || reply.Version != "1.2.0" {
		t.Errorf("unexpected reply: %+v", reply)
	}
}

func TestRequestWithoutHandlerReturnsNoReply(t *testing.T) {
	a, _ := Pair()

	_, err := a.Request(context.Background(), Message{Type: TypeGetVersion})
	if !errors.Is(err, ErrNoReply) {
		t.Errorf("expected ErrNoReply, got %v", err)
	}
}

func TestClosedPortRejectsTraffic(t *testing.T) {
	a, _ := Pair()
	a.Close()

	if err := a.Post(context.Background(), Message{Type: TypeSkipWaiting}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Post, got %v", err)
	}
	if _, err := a.Request(context.Background(), Message{Type: TypeGetVersion}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Request, got %v", err)
	}
}

func TestRequestHonorsContext(t *testing.T) {
	a, b := Pair()

	b.Listen(func(ctx context.Context, msg Message) *Message {
		time.Sleep(200 * time.Millisecond)
		return &Message{Type: TypeVersion}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Request(ctx, Message{Type: TypeGetVersion})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
