package matchmaking

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/metrics"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

func (c *Coordinator) StartVeto(ctx context.Context, id, requester string) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.start_veto",
		attribute.String("queue_id", id), attribute.String("captain_id", requester))
	defer func() { telemetry.EndSpan(span, err) }()

	now := c.now()
	rec, events, err := c.mutate(ctx, id, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		return engine.StartVeto(cur, requester, now)
	})
	if err != nil {
		return engine.Record{}, err
	}
	return c.settle(ctx, rec, events)
}

// BanMap bans mapName for the vetoing captain. The ban that leaves one map
// picks it and allocates a server before returning.
func (c *Coordinator) BanMap(ctx context.Context, id, requester, mapName string) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.ban_map",
		attribute.String("queue_id", id), attribute.String("captain_id", requester), attribute.String("map", mapName))
	defer func() { telemetry.EndSpan(span, err) }()

	now := c.now()
	rec, events, err := c.mutate(ctx, id, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		return engine.Ban(cur, requester, mapName, now)
	})
	if err != nil {
		return engine.Record{}, err
	}
	metrics.Inc(ctx, metrics.MapsBanned, attribute.String("map", mapName))
	return c.settle(ctx, rec, events)
}

// ResolveVeto is the admin way out of a veto anomaly.
func (c *Coordinator) ResolveVeto(ctx context.Context, id string, actor Actor, mapName string) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.resolve_veto",
		attribute.String("queue_id", id), attribute.String("map", mapName))
	defer func() { telemetry.EndSpan(span, err) }()

	if !actor.Admin {
		return engine.Record{}, engine.ErrAdminOnly
	}
	now := c.now()
	rec, events, err := c.mutate(ctx, id, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		return engine.ResolveVeto(cur, actor.ID, mapName, now)
	})
	if err != nil {
		return engine.Record{}, err
	}
	c.log.Info("veto resolved by admin", zap.String("queue_id", id), zap.String("admin_id", actor.ID), zap.String("map", mapName))
	return c.settle(ctx, rec, events)
}

func (c *Coordinator) reportAnomaly(ctx context.Context, rec engine.Record) {
	metrics.Inc(ctx, metrics.VetoAnomalies)
	fields := []zap.Field{zap.String("queue_id", rec.Queue.ID)}
	if v := rec.Veto; v != nil {
		fields = append(fields,
			zap.Strings("remaining_maps", v.AvailableMaps),
			zap.Int("bans", v.TotalBans()),
			zap.Int("pool", len(v.MapPool)),
		)
	}
	c.log.Error("veto finished with more than one map left; waiting for an admin to pick", fields...)
}
