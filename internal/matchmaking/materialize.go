package matchmaking

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/metrics"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

// Materialize retries persistence for an in-progress queue whose match was
// not stored yet.
func (c *Coordinator) Materialize(ctx context.Context, id string, actor Actor) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "coordinator.materialize", attribute.String("queue_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	rec, err = c.store.Get(ctx, id)
	if err != nil {
		return engine.Record{}, err
	}
	if !actor.canManage(rec.Queue) {
		return engine.Record{}, engine.ErrNotOwner
	}
	return c.materialize(ctx, rec)
}

// materialize stores both teams and the match, then drops the queue record.
// On failure the record is left in_progress for a retry.
func (c *Coordinator) materialize(ctx context.Context, rec engine.Record) (engine.Record, error) {
	if err := engine.ReadyToMaterialize(rec); err != nil {
		return rec, err
	}
	if c.matches == nil {
		c.log.Info("no match repository configured; queue stays in progress", zap.String("queue_id", rec.Queue.ID))
		return rec, nil
	}

	q := rec.Queue
	teamA, err := c.matches.CreateTeam(ctx, c.teamSpec(q, 1, q.Teams.Captain1, q.Teams.Team1))
	if err != nil {
		return rec, c.materializeFailed(q, "create team 1", err)
	}
	teamB, err := c.matches.CreateTeam(ctx, c.teamSpec(q, 2, q.Teams.Captain2, q.Teams.Team2))
	if err != nil {
		return rec, c.materializeFailed(q, "create team 2", err)
	}
	matchID, err := c.matches.CreateMatch(ctx, engine.FinalizedMatch{
		QueueID:   q.ID,
		TeamAID:   teamA,
		TeamBID:   teamB,
		PickedMap: q.Map,
		ServerRef: q.Server,
	})
	if err != nil {
		return rec, c.materializeFailed(q, "create match", err)
	}

	_, err = c.store.Delete(ctx, q.ID, func(cur engine.Record) error {
		return engine.ReadyToMaterialize(cur)
	})
	// Another request may have finished the same queue first.
	if err != nil && !engine.IsNotFound(err) {
		return rec, c.materializeFailed(q, "delete queue", err)
	}

	rec.Queue.Status = engine.StatusCompleted
	rec.Queue.MatchID = matchID
	c.publish(ctx,
		engine.Event{Type: engine.EvtQueueStatusChanged, QueueID: q.ID, Status: engine.StatusCompleted},
		engine.Event{Type: engine.EvtQueueDeleted, QueueID: q.ID, Status: engine.StatusCompleted},
	)
	metrics.Inc(ctx, metrics.MatchesCreated, attribute.String("map", q.Map))
	c.log.Info("match created",
		zap.String("queue_id", q.ID),
		zap.String("match_id", matchID),
		zap.String("team_a", teamA),
		zap.String("team_b", teamB),
		zap.String("map", q.Map),
	)
	return rec, nil
}

func (c *Coordinator) teamSpec(q engine.Queue, slot int, captain string, roster []string) engine.TeamSpec {
	name := captain
	if m, ok := q.Member(captain); ok && m.DisplayName != "" {
		name = m.DisplayName
	}
	return engine.TeamSpec{
		QueueID:   q.ID,
		Slot:      slot,
		Name:      "team_" + name,
		CaptainID: captain,
		Members:   roster,
	}
}

func (c *Coordinator) materializeFailed(q engine.Queue, step string, err error) error {
	c.log.Error("match materialization failed", zap.String("queue_id", q.ID), zap.String("step", step), zap.Error(err))
	return fmt.Errorf("materialize queue %s: %s: %w", q.ID, step, err)
}
