package store

import (
	"context"
	"fmt"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

var (
	ErrSlugTaken  = fmt.Errorf("queue id already in use: %w", engine.ErrConflict)
	ErrContention = fmt.Errorf("queue is being modified concurrently, retry: %w", engine.ErrUnavailable)
)

// UpdateFunc computes the next record from the current one. Returning an
// error aborts the update and nothing is written. It may run more than once.
type UpdateFunc func(cur engine.Record) (engine.Record, error)

// Store holds queue records. A record disappears at Queue.ExpiresAt.
type Store interface {
	// Create stores a new record. maxPerOwner <= 0 disables the quota.
	Create(ctx context.Context, rec engine.Record, maxPerOwner int) error
	Get(ctx context.Context, id string) (engine.Record, error)
	List(ctx context.Context) ([]engine.Record, error)
	// Update applies fn as one atomic read-modify-write.
	Update(ctx context.Context, id string, fn UpdateFunc) (engine.Record, error)
	// Delete removes the record if check accepts it and returns what was removed.
	Delete(ctx context.Context, id string, check func(engine.Record) error) (engine.Record, error)
}

func quotaError(owner string, max int) error {
	return fmt.Errorf("owner %s already has %d open queue(s): %w", owner, max, engine.ErrQuotaExceeded)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, engine.ErrUnavailable, err)
}
