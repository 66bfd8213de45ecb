package types

import (
	"time"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

// QueueSnapshot is the public view of a queue with its draft and veto.
type QueueSnapshot struct {
	ID        string             `json:"id"`
	OwnerID   string             `json:"owner_id"`
	Capacity  int                `json:"capacity"`
	Mode      engine.Mode        `json:"mode"`
	Private   bool               `json:"private"`
	Status    engine.Status      `json:"status"`
	Members   []engine.Member    `json:"members"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	Teams     *engine.Teams      `json:"teams,omitempty"`
	Map       string             `json:"map,omitempty"`
	Server    *engine.ServerRef  `json:"server,omitempty"`
	MatchID   string             `json:"match_id,omitempty"`
	Draft     *engine.DraftState `json:"draft,omitempty"`
	Veto      *engine.VetoState  `json:"veto,omitempty"`
}

// Snapshot builds the view of rec seen by viewerID. The server password is
// only shown to members and admins.
func Snapshot(rec engine.Record, viewerID string, admin bool) QueueSnapshot {
	rec = rec.Clone()
	q := rec.Queue
	if q.Server != nil && !admin && !q.IsMember(viewerID) {
		q.Server.Password = ""
	}
	return QueueSnapshot{
		ID:        q.ID,
		OwnerID:   q.OwnerID,
		Capacity:  q.Capacity,
		Mode:      q.Mode,
		Private:   q.Private,
		Status:    q.Status,
		Members:   q.Members,
		CreatedAt: q.CreatedAt,
		ExpiresAt: q.ExpiresAt,
		Teams:     q.Teams,
		Map:       q.Map,
		Server:    q.Server,
		MatchID:   q.MatchID,
		Draft:     rec.Draft,
		Veto:      rec.Veto,
	}
}
