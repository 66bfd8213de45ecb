package matchmaking

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/metrics"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

// Join seats playerID. Filling the last seat pops the queue as part of the
// same write, so concurrent joins cannot pop it twice.
func (c *Coordinator) Join(ctx context.Context, id, playerID string) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.join",
		attribute.String("queue_id", id), attribute.String("player_id", playerID))
	defer func() { telemetry.EndSpan(span, err) }()

	m := c.member(ctx, playerID)
	now := c.now()
	rec, events, err := c.mutate(ctx, id, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		return engine.Join(cur, m, c.rng, now)
	})
	if err != nil {
		return engine.Record{}, err
	}

	if rec.Queue.Status != engine.StatusWaiting && engine.ContainsEvent(events, engine.EvtQueueStatusChanged) {
		metrics.Inc(ctx, metrics.QueuesPopped, attribute.String("mode", string(rec.Queue.Mode)))
		fields := []zap.Field{
			zap.String("queue_id", id),
			zap.String("mode", string(rec.Queue.Mode)),
			zap.String("status", string(rec.Queue.Status)),
			zap.Int("members", len(rec.Queue.Members)),
		}
		if rec.Queue.Status == engine.StatusNotEnoughPlayers {
			c.log.Error("queue popped without enough players", fields...)
		} else {
			c.log.Info("queue popped", fields...)
		}
	}
	return c.settle(ctx, rec, events)
}

func (c *Coordinator) Leave(ctx context.Context, id, playerID string) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.leave",
		attribute.String("queue_id", id), attribute.String("player_id", playerID))
	defer func() { telemetry.EndSpan(span, err) }()

	rec, _, err = c.mutate(ctx, id, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		return engine.Leave(cur, playerID)
	})
	return rec, err
}
