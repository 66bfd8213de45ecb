package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/auth"
	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/matchmaking"
	pub "github.com/DoyleJ11/pug-queue-backend/pkg/types"
)

// Matchmaker is the coordinator surface the HTTP API drives.
type Matchmaker interface {
	CreateQueue(ctx context.Context, p matchmaking.CreateParams) (engine.Record, error)
	GetQueue(ctx context.Context, id string) (engine.Record, error)
	ListQueues(ctx context.Context, actor matchmaking.Actor) ([]engine.Record, error)
	DeleteQueue(ctx context.Context, id string, actor matchmaking.Actor) error
	Join(ctx context.Context, id, playerID string) (engine.Record, error)
	Leave(ctx context.Context, id, playerID string) (engine.Record, error)
	Pick(ctx context.Context, id, requester, target string) (engine.Record, error)
	StartVeto(ctx context.Context, id, requester string) (engine.Record, error)
	BanMap(ctx context.Context, id, requester, mapName string) (engine.Record, error)
	ResolveVeto(ctx context.Context, id string, actor matchmaking.Actor, mapName string) (engine.Record, error)
	RetryAllocation(ctx context.Context, id string, actor matchmaking.Actor) (engine.Record, error)
	AssignServer(ctx context.Context, id string, actor matchmaking.Actor, ref engine.ServerRef) (engine.Record, error)
	Materialize(ctx context.Context, id string, actor matchmaking.Actor) (engine.Record, error)
}

type API struct {
	mm      Matchmaker
	matches MatchFinder
	players PlayerWriter
	log     *zap.Logger
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *API) CreateQueue(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	var req pub.CreateQueueRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	rec, err := a.mm.CreateQueue(r.Context(), matchmaking.CreateParams{
		OwnerID:  actor.ID,
		Capacity: req.Capacity,
		Private:  req.Private,
		Mode:     engine.Mode(req.Mode),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pub.Snapshot(rec, actor.ID, actor.Admin))
}

func (a *API) ListQueues(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	recs, err := a.mm.ListQueues(r.Context(), actor)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]pub.QueueSnapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, pub.Snapshot(rec, actor.ID, actor.Admin))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetQueue(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	rec, err := a.mm.GetQueue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	q := rec.Queue
	if q.Private && !actor.Admin && actor.ID != q.OwnerID && !q.IsMember(actor.ID) {
		a.fail(w, r, engine.ErrQueueNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pub.Snapshot(rec, actor.ID, actor.Admin))
}

func (a *API) DeleteQueue(w http.ResponseWriter, r *http.Request) {
	if err := a.mm.DeleteQueue(r.Context(), chi.URLParam(r, "id"), actorOf(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) Join(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	rec, err := a.mm.Join(r.Context(), chi.URLParam(r, "id"), actor.ID)
	a.respond(w, r, actor, rec, err)
}

func (a *API) Leave(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	rec, err := a.mm.Leave(r.Context(), chi.URLParam(r, "id"), actor.ID)
	a.respond(w, r, actor, rec, err)
}

func (a *API) Pick(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	var req pub.PickRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := a.mm.Pick(r.Context(), chi.URLParam(r, "id"), actor.ID, req.PlayerID)
	a.respond(w, r, actor, rec, err)
}

func (a *API) StartVeto(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	rec, err := a.mm.StartVeto(r.Context(), chi.URLParam(r, "id"), actor.ID)
	a.respond(w, r, actor, rec, err)
}

func (a *API) Ban(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	var req pub.BanRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := a.mm.BanMap(r.Context(), chi.URLParam(r, "id"), actor.ID, req.Map)
	a.respond(w, r, actor, rec, err)
}

func (a *API) ResolveVeto(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	var req pub.ResolveVetoRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := a.mm.ResolveVeto(r.Context(), chi.URLParam(r, "id"), actor, req.Map)
	a.respond(w, r, actor, rec, err)
}

func (a *API) AssignServer(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	var req pub.AssignServerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" || req.Host == "" || req.Port <= 0 {
		writeError(w, http.StatusBadRequest, "id, host and port are required")
		return
	}
	ref := engine.ServerRef{ID: req.ID, Host: req.Host, Port: req.Port, Password: req.Password}
	rec, err := a.mm.AssignServer(r.Context(), chi.URLParam(r, "id"), actor, ref)
	a.respond(w, r, actor, rec, err)
}

func (a *API) RetryAllocation(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	rec, err := a.mm.RetryAllocation(r.Context(), chi.URLParam(r, "id"), actor)
	a.respond(w, r, actor, rec, err)
}

func (a *API) Materialize(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	rec, err := a.mm.Materialize(r.Context(), chi.URLParam(r, "id"), actor)
	a.respond(w, r, actor, rec, err)
}

// respond writes the queue snapshot. A coordinator call that returns a record
// together with an error has stored that record, so the snapshot is sent
// along with the error body.
func (a *API) respond(w http.ResponseWriter, r *http.Request, actor matchmaking.Actor, rec engine.Record, err error) {
	if err != nil {
		var snap *pub.QueueSnapshot
		if rec.Queue.ID != "" {
			s := pub.Snapshot(rec, actor.ID, actor.Admin)
			snap = &s
		}
		a.failWith(w, r, err, snap)
		return
	}
	writeJSON(w, http.StatusOK, pub.Snapshot(rec, actor.ID, actor.Admin))
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	a.failWith(w, r, err, nil)
}

func (a *API) failWith(w http.ResponseWriter, r *http.Request, err error, snap *pub.QueueSnapshot) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, pub.ErrorResponse{Error: err.Error(), Queue: snap})
}

func statusFor(err error) int {
	switch {
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case engine.IsConflict(err):
		return http.StatusConflict
	case engine.IsForbidden(err):
		return http.StatusForbidden
	case engine.IsBadRequest(err):
		return http.StatusBadRequest
	case engine.IsQuotaExceeded(err):
		return http.StatusTooManyRequests
	case engine.IsAllocationFailed(err):
		return http.StatusBadGateway
	case engine.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func actorOf(r *http.Request) matchmaking.Actor {
	a, _ := auth.ActorFrom(r.Context())
	return a
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, pub.ErrorResponse{Error: msg})
}
