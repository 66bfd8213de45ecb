package allocator

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

// ErrNoServer means a source had nothing to give; the chain moves on.
var ErrNoServer = errors.New("no server available")

// Source is one place servers come from.
type Source interface {
	Name() string
	Allocate(ctx context.Context, req engine.AllocationRequest) (*engine.ServerRef, error)
}

// Releaser is implemented by sources that hold servers per queue.
type Releaser interface {
	Release(ctx context.Context, queueID string) error
}

// Chain asks each source in order and returns the first server found. The
// returned ref carries the name of the source that produced it.
type Chain struct {
	sources []Source
	log     *zap.Logger
}

func NewChain(log *zap.Logger, sources ...Source) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{sources: sources, log: log.Named("allocator")}
}

func (c *Chain) Allocate(ctx context.Context, req engine.AllocationRequest) (ref *engine.ServerRef, err error) {
	ctx, span := telemetry.StartSpan(ctx, "allocator.allocate",
		attribute.String("queue_id", req.QueueID), attribute.String("map", req.Map))
	defer func() { telemetry.EndSpan(span, err) }()

	var errs []error
	for _, src := range c.sources {
		ref, err := src.Allocate(ctx, req)
		if err == nil && ref != nil {
			ref.Source = src.Name()
			return ref, nil
		}
		if err == nil || errors.Is(err, ErrNoServer) {
			c.log.Debug("source has no server", zap.String("source", src.Name()), zap.String("queue_id", req.QueueID))
			continue
		}
		c.log.Warn("allocator source failed",
			zap.String("source", src.Name()), zap.String("queue_id", req.QueueID), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNoServer
}

// Release hands back whatever the sources hold for queueID.
func (c *Chain) Release(ctx context.Context, queueID string) error {
	var errs []error
	for _, src := range c.sources {
		if r, ok := src.(Releaser); ok {
			if err := r.Release(ctx, queueID); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
