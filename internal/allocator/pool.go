package allocator

import (
	"context"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

// ServerClaimer reserves a pooled server. An empty ownerID is the public
// pool; a nil ref means the pool is empty.
type ServerClaimer interface {
	Claim(ctx context.Context, ownerID, queueID string) (*engine.ServerRef, error)
	Release(ctx context.Context, queueID string) error
}

// PoolSource draws from the server pool, either the queue owner's own
// servers or the public ones.
type PoolSource struct {
	pool  ServerClaimer
	owned bool
}

func OwnerPool(pool ServerClaimer) *PoolSource  { return &PoolSource{pool: pool, owned: true} }
func PublicPool(pool ServerClaimer) *PoolSource { return &PoolSource{pool: pool} }

func (s *PoolSource) Name() string {
	if s.owned {
		return "owner"
	}
	return "public"
}

func (s *PoolSource) Allocate(ctx context.Context, req engine.AllocationRequest) (*engine.ServerRef, error) {
	owner := ""
	if s.owned {
		if req.OwnerID == "" {
			return nil, ErrNoServer
		}
		owner = req.OwnerID
	}
	ref, err := s.pool.Claim(ctx, owner, req.QueueID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, ErrNoServer
	}
	return ref, nil
}

// Release is shared by both scopes, so only the public source forwards it.
func (s *PoolSource) Release(ctx context.Context, queueID string) error {
	if s.owned {
		return nil
	}
	return s.pool.Release(ctx, queueID)
}
