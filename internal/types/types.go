package types

import (
	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	pub "github.com/DoyleJ11/pug-queue-backend/pkg/types"
)

// ClientMessage is what a websocket client may send. "Refresh" asks for a
// fresh snapshot; anything else is ignored.
type ClientMessage struct {
	Type string `json:"type"`
}

type ServerMessage struct {
	Type  string             `json:"type"` // "QueueSnapshot" | "Event" | "Error"
	Queue *pub.QueueSnapshot `json:"queue,omitempty"`
	Event *engine.Event      `json:"event,omitempty"`
	Error string             `json:"error,omitempty"`
}

const (
	MsgQueueSnapshot = "QueueSnapshot"
	MsgEvent         = "Event"
	MsgError         = "Error"
	MsgRefresh       = "Refresh"
)
