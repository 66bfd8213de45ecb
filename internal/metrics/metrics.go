package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	QueuesCreated      metric.Int64Counter
	QueuesPopped       metric.Int64Counter
	PlayersPicked      metric.Int64Counter
	MapsBanned         metric.Int64Counter
	AllocationFailures metric.Int64Counter
	VetoAnomalies      metric.Int64Counter
	MatchesCreated     metric.Int64Counter

	initOnce sync.Once
	initErr  error
)

// Init registers the counters on the global meter provider. Safe to call
// more than once.
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	meter := otel.Meter("pug-queue")
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&QueuesCreated, "pug_queues_created_total", "Queues created"},
		{&QueuesPopped, "pug_queues_popped_total", "Queues that filled and formed teams"},
		{&PlayersPicked, "pug_players_picked_total", "Draft picks made by captains"},
		{&MapsBanned, "pug_maps_banned_total", "Maps banned during veto"},
		{&AllocationFailures, "pug_allocation_failures_total", "Server allocations that found no server"},
		{&VetoAnomalies, "pug_veto_anomalies_total", "Vetoes that ended with more than one map left"},
		{&MatchesCreated, "pug_matches_created_total", "Matches handed to the match repository"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return err
		}
		*c.dst = counter
	}
	return nil
}

// Inc bumps c by one. Counters are nil until Init runs.
func Inc(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
