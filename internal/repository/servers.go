package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/models"
)

// ServerPool hands out pooled game servers. Rows are claimed with
// FOR UPDATE SKIP LOCKED so concurrent claims never block on each other or
// get the same server.
type ServerPool struct {
	db  *gorm.DB
	now func() time.Time
}

func NewServerPool(db *gorm.DB) *ServerPool {
	return &ServerPool{db: db, now: time.Now}
}

// Claim reserves a free active server for queueID. An empty ownerID searches
// the public pool. It returns nil when nothing is free.
func (p *ServerPool) Claim(ctx context.Context, ownerID, queueID string) (*engine.ServerRef, error) {
	var srv models.GameServer
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("active = ? AND owner_id = ? AND (queue_id = '' OR queue_id IS NULL)", true, ownerID).
			Order("id").
			First(&srv).Error
		if err != nil {
			return err
		}
		now := p.now()
		return tx.Model(&srv).Updates(map[string]any{"queue_id": queueID, "claimed_at": now}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim server for queue %s: %w", queueID, err)
	}
	return &engine.ServerRef{ID: srv.ID, Host: srv.Host, Port: srv.Port, Password: srv.Password}, nil
}

// Release frees every server held by queueID.
func (p *ServerPool) Release(ctx context.Context, queueID string) error {
	return p.db.WithContext(ctx).Model(&models.GameServer{}).
		Where("queue_id = ?", queueID).
		Updates(map[string]any{"queue_id": "", "claimed_at": nil}).Error
}
