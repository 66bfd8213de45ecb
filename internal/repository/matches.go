package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/models"
)

// MatchStore persists finalized matches. Teams are unique per queue and slot,
// matches per queue, so a repeated call returns the row written first.
type MatchStore struct {
	db *gorm.DB
}

func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{db: db}
}

func (r *MatchStore) CreateTeam(ctx context.Context, spec engine.TeamSpec) (string, error) {
	team := models.Team{
		QueueID:   spec.QueueID,
		Slot:      spec.Slot,
		Name:      spec.Name,
		CaptainID: spec.CaptainID,
		Members:   spec.Members,
	}
	err := firstOrCreate(ctx, r.db, &team, models.Team{ID: uuid.NewString()}, "queue_id = ? AND slot = ?", spec.QueueID, spec.Slot)
	if err != nil {
		return "", fmt.Errorf("create team %d for queue %s: %w", spec.Slot, spec.QueueID, err)
	}
	return team.ID, nil
}

func (r *MatchStore) CreateMatch(ctx context.Context, m engine.FinalizedMatch) (string, error) {
	match := models.Match{
		QueueID: m.QueueID,
		TeamAID: m.TeamAID,
		TeamBID: m.TeamBID,
		Map:     m.PickedMap,
	}
	if s := m.ServerRef; s != nil {
		match.ServerID = s.ID
		match.ServerHost = s.Host
		match.ServerPort = s.Port
		match.ServerSource = s.Source
	}
	if err := firstOrCreate(ctx, r.db, &match, models.Match{ID: uuid.NewString()}, "queue_id = ?", m.QueueID); err != nil {
		return "", fmt.Errorf("create match for queue %s: %w", m.QueueID, err)
	}
	return match.ID, nil
}

func (r *MatchStore) GetMatchByQueue(ctx context.Context, queueID string) (*models.Match, error) {
	var m models.Match
	err := r.db.WithContext(ctx).First(&m, "queue_id = ?", queueID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// firstOrCreate loads the row matching the query into dest, or inserts dest
// with attrs applied. dest must not carry a primary key, gorm would add it to
// the lookup. Losing an insert race falls back to reading the winner.
func firstOrCreate[T any](ctx context.Context, db *gorm.DB, dest *T, attrs T, query string, args ...any) error {
	db = db.WithContext(ctx)
	err := db.Where(query, args...).Attrs(attrs).FirstOrCreate(dest).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var winner T
		if err = db.Where(query, args...).First(&winner).Error; err == nil {
			*dest = winner
		}
	}
	return err
}
