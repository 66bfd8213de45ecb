package matchmaking

import (
	"context"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

// Publisher receives engine events after the change they describe has been
// stored. Delivery is fire-and-forget, so Publish must not block.
type Publisher interface {
	Publish(ctx context.Context, ev engine.Event)
}

type PublisherFunc func(ctx context.Context, ev engine.Event)

func (f PublisherFunc) Publish(ctx context.Context, ev engine.Event) { f(ctx, ev) }

// MultiPublisher fans each event out to every publisher in order.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev engine.Event) {
	for _, p := range m {
		p.Publish(ctx, ev)
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, engine.Event) {}
