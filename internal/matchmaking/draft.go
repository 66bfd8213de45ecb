package matchmaking

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/metrics"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

// Pick lets the captain whose turn it is take target onto their team.
func (c *Coordinator) Pick(ctx context.Context, id, requester, target string) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.pick",
		attribute.String("queue_id", id), attribute.String("captain_id", requester))
	defer func() { telemetry.EndSpan(span, err) }()

	now := c.now()
	rec, events, err := c.mutate(ctx, id, func(cur engine.Record) ([]engine.Event, engine.Record, error) {
		return engine.Pick(cur, requester, target, now)
	})
	if err != nil {
		return engine.Record{}, err
	}

	metrics.Inc(ctx, metrics.PlayersPicked)
	if rec.Draft != nil && rec.Draft.Done() {
		c.log.Info("draft completed",
			zap.String("queue_id", id),
			zap.Strings("team1", rec.Draft.Team1Picks),
			zap.Strings("team2", rec.Draft.Team2Picks),
		)
	}
	return c.settle(ctx, rec, events)
}
