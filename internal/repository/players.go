package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DoyleJ11/pug-queue-backend/internal/models"
)

// PlayerDirectory answers rating and display name lookups from the players
// table. Unknown players are unrated and unnamed rather than an error.
type PlayerDirectory struct {
	db *gorm.DB
}

func NewPlayerDirectory(db *gorm.DB) *PlayerDirectory {
	return &PlayerDirectory{db: db}
}

func (r *PlayerDirectory) find(ctx context.Context, id string) (*models.Player, error) {
	var p models.Player
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PlayerDirectory) RatingOf(ctx context.Context, playerID string) (*float64, error) {
	p, err := r.find(ctx, playerID)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Rating, nil
}

func (r *PlayerDirectory) DisplayNameOf(ctx context.Context, playerID string) (string, error) {
	p, err := r.find(ctx, playerID)
	if err != nil || p == nil {
		return "", err
	}
	return p.DisplayName, nil
}

func (r *PlayerDirectory) Upsert(ctx context.Context, p *models.Player) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "rating", "updated_at"}),
	}).Create(p).Error
}
