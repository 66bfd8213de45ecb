package matchmaking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/metrics"
	"github.com/DoyleJ11/pug-queue-backend/internal/store"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

const slugCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func GenerateSlug(rng engine.Rand) string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = slugCharset[rng.IntN(len(slugCharset))]
	}
	return string(code)
}

type CreateParams struct {
	OwnerID string
	// Capacity below the configured minimum is raised to it; zero means the
	// configured default.
	Capacity int
	Private  bool
	// Mode defaults to the configured mode when empty.
	Mode engine.Mode
}

func (c *Coordinator) CreateQueue(ctx context.Context, p CreateParams) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.create_queue", attribute.String("owner_id", p.OwnerID))
	defer func() { telemetry.EndSpan(span, err) }()

	if p.OwnerID == "" {
		return engine.Record{}, fmt.Errorf("owner id is required: %w", engine.ErrBadRequest)
	}
	capacity := p.Capacity
	if capacity == 0 {
		capacity = c.cfg.DefaultCapacity
	}
	if capacity < c.cfg.MinCapacity {
		capacity = c.cfg.MinCapacity
	}
	mode := p.Mode
	if mode == "" {
		mode = c.cfg.DefaultMode
	}
	if !mode.Valid() {
		return engine.Record{}, fmt.Errorf("unknown mode %q: %w", mode, engine.ErrBadRequest)
	}

	owner := c.member(ctx, p.OwnerID)
	for attempt := 0; attempt <= c.cfg.SlugRetries; attempt++ {
		id := GenerateSlug(c.rng)
		if attempt == c.cfg.SlugRetries {
			id = uuid.NewString()
		}

		events, fresh := engine.NewRecord(id, owner, capacity, mode, p.Private, c.cfg.Rules, c.now(), c.cfg.QueueTTL)
		err = c.store.Create(ctx, fresh, c.cfg.MaxQueuesPerOwner)
		if errors.Is(err, store.ErrSlugTaken) {
			c.log.Debug("collision on queue id, regenerating", zap.String("queue_id", id))
			continue
		}
		if err != nil {
			return engine.Record{}, err
		}

		c.publish(ctx, events...)
		metrics.Inc(ctx, metrics.QueuesCreated, attribute.String("mode", string(mode)))
		c.log.Info("queue created",
			zap.String("queue_id", id),
			zap.String("owner_id", p.OwnerID),
			zap.Int("capacity", capacity),
			zap.String("mode", string(mode)),
			zap.Bool("private", p.Private),
		)
		return fresh, nil
	}
	return engine.Record{}, err
}

func (c *Coordinator) GetQueue(ctx context.Context, id string) (engine.Record, error) {
	return c.store.Get(ctx, id)
}

// ListQueues returns public queues plus the private ones actor may see.
func (c *Coordinator) ListQueues(ctx context.Context, actor Actor) ([]engine.Record, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]engine.Record, 0, len(all))
	for _, rec := range all {
		if !rec.Queue.Private || actor.canManage(rec.Queue) {
			visible = append(visible, rec)
		}
	}
	return visible, nil
}

// DeleteQueue removes the queue along with any draft or veto in flight.
func (c *Coordinator) DeleteQueue(ctx context.Context, id string, actor Actor) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.delete_queue", attribute.String("queue_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	rec, err := c.store.Delete(ctx, id, func(cur engine.Record) error {
		if !actor.canManage(cur.Queue) {
			return engine.ErrNotOwner
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rec.Queue.Server != nil {
		c.releaseServer(ctx, id, rec.Queue.Server.ID)
	}
	c.publish(ctx, engine.Event{Type: engine.EvtQueueDeleted, QueueID: id, ActorID: actor.ID, Status: rec.Queue.Status})
	c.log.Info("queue deleted", zap.String("queue_id", id), zap.String("actor_id", actor.ID), zap.String("status", string(rec.Queue.Status)))
	return nil
}

// releaseServer hands a claimed server back to its pool when the queue that
// claimed it will never record a match.
func (c *Coordinator) releaseServer(ctx context.Context, queueID, serverID string) {
	r, ok := c.servers.(ServerReleaser)
	if !ok {
		return
	}
	if err := r.Release(ctx, queueID); err != nil {
		c.log.Warn("failed to release server", zap.String("queue_id", queueID), zap.String("server_id", serverID), zap.Error(err))
		return
	}
	c.log.Info("server released", zap.String("queue_id", queueID), zap.String("server_id", serverID))
}
