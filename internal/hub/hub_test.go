package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

// recvEvent receives one event with a timeout so tests never hang.
func recvEvent(t *testing.T, ch <-chan engine.Event, within time.Duration) engine.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return engine.Event{}
	}
}

func waitClosed(t *testing.T, ch <-chan engine.Event, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox was not closed within %v", within)
		}
	}
}

func roomSize(t *testing.T, h *Hub, queueID string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	n, err := h.RoomSize(ctx, queueID)
	if err != nil {
		t.Fatalf("room size: %v", err)
	}
	return n
}

func TestHub_BroadcastOnlyToRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, zaptest.NewLogger(t))

	a := make(chan engine.Event, 4)
	b := make(chan engine.Event, 4)
	h.Inbox() <- Subscribe{QueueID: "ABC123", ClientID: "c1", Outbox: a}
	h.Inbox() <- Subscribe{QueueID: "XYZ789", ClientID: "c2", Outbox: b}

	h.Publish(ctx, engine.Event{Type: engine.EvtPlayerJoined, QueueID: "ABC123", PlayerID: "p2"})

	got := recvEvent(t, a, 100*time.Millisecond)
	if got.Type != engine.EvtPlayerJoined || got.PlayerID != "p2" {
		t.Fatalf("unexpected event %+v", got)
	}
	if n := roomSize(t, h, "XYZ789"); n != 1 {
		t.Fatalf("want 1 client in other room, got %d", n)
	}
	select {
	case ev := <-b:
		t.Fatalf("other room received %+v", ev)
	default:
	}
}

func TestHub_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, zaptest.NewLogger(t))

	out := make(chan engine.Event, 1)
	h.Inbox() <- Subscribe{QueueID: "ABC123", ClientID: "c1", Outbox: out}

	h.Publish(ctx, engine.Event{Type: engine.EvtPlayerJoined, QueueID: "ABC123"})
	h.Publish(ctx, engine.Event{Type: engine.EvtPlayerLeft, QueueID: "ABC123"})

	if n := roomSize(t, h, "ABC123"); n != 0 {
		t.Fatalf("slow client should be dropped, room has %d", n)
	}
	waitClosed(t, out, 100*time.Millisecond)
}

func TestHub_QueueDeletedClosesRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, zaptest.NewLogger(t))

	out := make(chan engine.Event, 4)
	h.Inbox() <- Subscribe{QueueID: "ABC123", ClientID: "c1", Outbox: out}
	h.Publish(ctx, engine.Event{Type: engine.EvtQueueDeleted, QueueID: "ABC123"})

	got := recvEvent(t, out, 100*time.Millisecond)
	if got.Type != engine.EvtQueueDeleted {
		t.Fatalf("want queue_deleted, got %s", got.Type)
	}
	waitClosed(t, out, 100*time.Millisecond)
}

func TestHub_UnsubscribeAndShutdown(t *testing.T) {
	h := NewHub(context.Background(), zaptest.NewLogger(t))

	a := make(chan engine.Event, 1)
	b := make(chan engine.Event, 1)
	h.Inbox() <- Subscribe{QueueID: "ABC123", ClientID: "c1", Outbox: a}
	h.Inbox() <- Subscribe{QueueID: "ABC123", ClientID: "c2", Outbox: b}
	h.Inbox() <- Unsubscribe{QueueID: "ABC123", ClientID: "c1"}
	waitClosed(t, a, 100*time.Millisecond)

	if n := roomSize(t, h, "ABC123"); n != 1 {
		t.Fatalf("want 1 client left, got %d", n)
	}

	h.Inbox() <- ShutdownHub{}
	waitClosed(t, b, 100*time.Millisecond)
	select {
	case <-h.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("hub did not stop")
	}
	if _, err := h.RoomSize(context.Background(), "ABC123"); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("room size after shutdown: err = %v", err)
	}
}
