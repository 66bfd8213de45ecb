package matchmaking

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/metrics"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

// allocate asks the allocator for a server for the picked map and records
// the outcome. Only the transition that set AllocationPending calls it.
func (c *Coordinator) allocate(ctx context.Context, rec engine.Record) (engine.Record, error) {
	q := rec.Queue
	req := engine.AllocationRequest{QueueID: q.ID, OwnerID: q.OwnerID, Map: q.Map}

	var ref *engine.ServerRef
	var allocErr error
	if c.servers == nil {
		allocErr = errors.New("no server allocator configured")
	} else {
		actx, cancel := context.WithTimeout(ctx, c.cfg.AllocationTimeout)
		ref, allocErr = c.servers.Allocate(actx, req)
		cancel()
		if allocErr == nil && ref == nil {
			allocErr = errors.New("allocator returned no server")
		}
	}
	if allocErr != nil {
		ref = nil
	}

	rec, _, err := c.mutate(ctx, q.ID, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		return engine.RecordAllocation(cur, ref)
	})
	if err != nil {
		if ref != nil {
			c.log.Error("allocated server could not be recorded",
				zap.String("queue_id", q.ID), zap.String("server_id", ref.ID), zap.Error(err))
			c.releaseServer(context.WithoutCancel(ctx), q.ID, ref.ID)
		}
		return engine.Record{}, err
	}

	if allocErr != nil {
		metrics.Inc(ctx, metrics.AllocationFailures, attribute.String("map", q.Map))
		c.log.Warn("server allocation failed",
			zap.String("queue_id", q.ID), zap.String("map", q.Map), zap.Error(allocErr))
		return rec, fmt.Errorf("queue %s on %s: %w: %w", q.ID, q.Map, engine.ErrAllocationFailed, allocErr)
	}

	c.log.Info("server allocated",
		zap.String("queue_id", q.ID),
		zap.String("map", q.Map),
		zap.String("server_id", ref.ID),
		zap.String("source", ref.Source),
	)
	return c.materialize(ctx, rec)
}

// RetryAllocation runs the allocator again for a queue whose allocation
// failed. Concurrent retries are rejected by the claim.
func (c *Coordinator) RetryAllocation(ctx context.Context, id string, actor Actor) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.retry_allocation", attribute.String("queue_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	rec, _, err = c.mutate(ctx, id, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		if !actor.canManage(cur.Queue) {
			return nil, cur, engine.ErrNotOwner
		}
		return engine.ClaimAllocationRetry(cur)
	})
	if err != nil {
		return engine.Record{}, err
	}
	return c.allocate(ctx, rec)
}

// AssignServer installs a server picked by an admin and materializes the
// match.
func (c *Coordinator) AssignServer(ctx context.Context, id string, actor Actor, ref engine.ServerRef) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.assign_server", attribute.String("queue_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	if !actor.Admin {
		return engine.Record{}, engine.ErrAdminOnly
	}
	if ref.Source == "" {
		ref.Source = "manual"
	}
	rec, _, err = c.mutate(ctx, id, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		return engine.AssignServer(cur, ref)
	})
	if err != nil {
		return engine.Record{}, err
	}
	c.log.Info("server assigned by admin", zap.String("queue_id", id), zap.String("admin_id", actor.ID), zap.String("server_id", ref.ID))
	return c.materialize(ctx, rec)
}
