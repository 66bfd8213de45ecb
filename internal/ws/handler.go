package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/auth"
	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/hub"
	"github.com/DoyleJ11/pug-queue-backend/internal/types"
	pub "github.com/DoyleJ11/pug-queue-backend/pkg/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 30 * time.Second
)

type QueueGetter interface {
	GetQueue(ctx context.Context, id string) (engine.Record, error)
}

// Handler streams a queue's events to a websocket client, starting with a
// snapshot. Private queues are only visible to members, the owner and admins.
func Handler(queues QueueGetter, h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("queue")
		if id == "" {
			http.Error(w, "missing queue", http.StatusBadRequest)
			return
		}

		rec, err := queues.GetQueue(r.Context(), id)
		if engine.IsNotFound(err) {
			http.Error(w, "queue not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "failed to load queue", http.StatusServiceUnavailable)
			return
		}
		actor, _ := auth.ActorFrom(r.Context())
		if rec.Queue.Private && !actor.Admin && actor.ID != rec.Queue.OwnerID && !rec.Queue.IsMember(actor.ID) {
			http.Error(w, "queue not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		clientID := uuid.NewString()
		out := make(chan engine.Event, 16)
		// The inbox is buffered, so a stopped hub must be checked first.
		select {
		case <-h.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		default:
		}
		select {
		case h.Inbox() <- hub.Subscribe{QueueID: id, ClientID: clientID, Outbox: out}:
		case <-h.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-r.Context().Done():
			return
		}
		defer func() {
			select {
			case h.Inbox() <- hub.Unsubscribe{QueueID: id, ClientID: clientID}:
			case <-h.Done():
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		if n, err := h.RoomSize(ctx, id); err == nil {
			log.Debug("client subscribed", zap.String("queue_id", id), zap.String("client_id", clientID), zap.Int("watchers", n))
		}

		snapshot := func() error {
			cur, err := queues.GetQueue(ctx, id)
			if err != nil {
				return write(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: err.Error()})
			}
			snap := pub.Snapshot(cur, actor.ID, actor.Admin)
			return write(ctx, conn, types.ServerMessage{Type: types.MsgQueueSnapshot, Queue: &snap})
		}
		if err := snapshot(); err != nil {
			return
		}

		// Writer goroutine
		go func() {
			defer cancel()
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case ev, ok := <-out:
					if !ok {
						conn.Close(websocket.StatusNormalClosure, "queue closed")
						return
					}
					if err := write(ctx, conn, types.ServerMessage{Type: types.MsgEvent, Event: &ev}); err != nil {
						return
					}
				case <-ticker.C:
					pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if ctx.Err() == nil {
						log.Debug("websocket read failed", zap.String("queue_id", id), zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}
			if cm.Type == types.MsgRefresh {
				if err := snapshot(); err != nil {
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
