package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

// ErrHubClosed is returned by calls made after the hub has shut down.
var ErrHubClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

// Subscribe registers Outbox for every event of QueueID. The hub closes
// Outbox when the client is dropped, the queue is deleted or the hub stops.
type Subscribe struct {
	QueueID  string
	ClientID string
	Outbox   chan engine.Event
}

type Unsubscribe struct {
	QueueID  string
	ClientID string
}

type Broadcast struct {
	Event engine.Event
}

// GetRoom asks how many clients watch a queue. RoomSize wraps it.
type GetRoom struct {
	QueueID string
	Reply   chan int
}

type ShutdownHub struct{}

func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Broadcast) isHubMsg()   {}
func (GetRoom) isHubMsg()     {}
func (ShutdownHub) isHubMsg() {}

// Hub fans committed queue events out to websocket clients, one room per
// queue. All room state is owned by the loop goroutine.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]map[string]chan engine.Event
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 256),
		rooms:  make(map[string]map[string]chan engine.Event),
		ctx:    ctx,
		cancel: cancel,
		log:    log.Named("hub"),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Publish queues ev for broadcast. It gives up if ctx ends or the hub has
// stopped.
func (h *Hub) Publish(ctx context.Context, ev engine.Event) {
	select {
	case h.inbox <- Broadcast{Event: ev}:
	case <-ctx.Done():
	case <-h.ctx.Done():
	}
}

// RoomSize reports how many clients watch queueID.
func (h *Hub) RoomSize(ctx context.Context, queueID string) (int, error) {
	reply := make(chan int, 1)
	select {
	case h.inbox <- GetRoom{QueueID: queueID, Reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.ctx.Done():
		return 0, ErrHubClosed
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.ctx.Done():
		return 0, ErrHubClosed
	}
}

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				room := h.rooms[msg.QueueID]
				if room == nil {
					room = make(map[string]chan engine.Event)
					h.rooms[msg.QueueID] = room
				}
				if old, ok := room[msg.ClientID]; ok && old != msg.Outbox {
					close(old)
				}
				room[msg.ClientID] = msg.Outbox

			case Unsubscribe:
				room := h.rooms[msg.QueueID]
				if ch, ok := room[msg.ClientID]; ok {
					close(ch)
					delete(room, msg.ClientID)
				}
				if len(room) == 0 {
					delete(h.rooms, msg.QueueID)
				}

			case Broadcast:
				h.broadcast(msg.Event)
				if msg.Event.Type == engine.EvtQueueDeleted {
					h.closeRoom(msg.Event.QueueID)
				}

			case GetRoom:
				msg.Reply <- len(h.rooms[msg.QueueID])

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) broadcast(ev engine.Event) {
	room := h.rooms[ev.QueueID]
	for id, ch := range room {
		select {
		case ch <- ev:
		default:
			// Slow client; it will have to reconnect and refetch the queue.
			h.log.Warn("dropping slow client", zap.String("queue_id", ev.QueueID), zap.String("client_id", id))
			close(ch)
			delete(room, id)
		}
	}
}

func (h *Hub) closeRoom(queueID string) {
	for _, ch := range h.rooms[queueID] {
		close(ch)
	}
	delete(h.rooms, queueID)
}

func (h *Hub) shutdown() {
	for id := range h.rooms {
		h.closeRoom(id)
	}
	h.cancel()
}
