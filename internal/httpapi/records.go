package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/models"
	pub "github.com/DoyleJ11/pug-queue-backend/pkg/types"
)

// MatchFinder looks up the match a completed queue was turned into.
type MatchFinder interface {
	GetMatchByQueue(ctx context.Context, queueID string) (*models.Match, error)
}

// PlayerWriter maintains the player directory that ratings and team names
// are read from.
type PlayerWriter interface {
	Upsert(ctx context.Context, p *models.Player) error
}

type Option func(*API)

// WithMatches serves GET /matches/{queueID}.
func WithMatches(m MatchFinder) Option { return func(a *API) { a.matches = m } }

// WithPlayers serves the admin-only PUT /players/{id}.
func WithPlayers(p PlayerWriter) Option { return func(a *API) { a.players = p } }

func (a *API) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := a.matches.GetMatchByQueue(r.Context(), chi.URLParam(r, "queueID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pub.MatchResponse{
		ID:           m.ID,
		QueueID:      m.QueueID,
		TeamAID:      m.TeamAID,
		TeamBID:      m.TeamBID,
		Map:          m.Map,
		ServerID:     m.ServerID,
		ServerHost:   m.ServerHost,
		ServerPort:   m.ServerPort,
		ServerSource: m.ServerSource,
		CreatedAt:    m.CreatedAt,
	})
}

func (a *API) UpsertPlayer(w http.ResponseWriter, r *http.Request) {
	if !actorOf(r).Admin {
		a.fail(w, r, engine.ErrAdminOnly)
		return
	}
	var req pub.PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}
	p := &models.Player{ID: chi.URLParam(r, "id"), DisplayName: name, Rating: req.Rating}
	if err := a.players.Upsert(r.Context(), p); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pub.PlayerResponse{ID: p.ID, DisplayName: p.DisplayName, Rating: p.Rating})
}
