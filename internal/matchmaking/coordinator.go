package matchmaking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/store"
)

// UserDirectory resolves player identity. A nil rating means unrated.
type UserDirectory interface {
	RatingOf(ctx context.Context, playerID string) (*float64, error)
	DisplayNameOf(ctx context.Context, playerID string) (string, error)
}

// ServerAllocator finds or provisions a server for a picked map. A nil ref
// or an error both mean no server could be obtained.
type ServerAllocator interface {
	Allocate(ctx context.Context, req engine.AllocationRequest) (*engine.ServerRef, error)
}

// ServerReleaser is optionally implemented by a ServerAllocator that can take
// a server back when its queue is deleted.
type ServerReleaser interface {
	Release(ctx context.Context, queueID string) error
}

// MatchRepository persists finalized matches. Both calls must be idempotent
// for the same queue so materialization can be retried.
type MatchRepository interface {
	CreateTeam(ctx context.Context, team engine.TeamSpec) (string, error)
	CreateMatch(ctx context.Context, match engine.FinalizedMatch) (string, error)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string
	Admin bool
}

func (a Actor) canManage(q engine.Queue) bool { return a.Admin || a.ID == q.OwnerID }

type Config struct {
	MaxQueuesPerOwner int
	MinCapacity       int
	DefaultCapacity   int
	QueueTTL          time.Duration
	DefaultMode       engine.Mode
	SlugRetries       int
	Rules             engine.Rules
	AllocationTimeout time.Duration
}

type Deps struct {
	Store   store.Store
	Users   UserDirectory
	Servers ServerAllocator
	Matches MatchRepository
	Events  Publisher
	Rand    engine.Rand
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Coordinator runs every queue, draft and veto operation. Each state change
// is one atomic store update; collaborator calls happen outside of it.
type Coordinator struct {
	store   store.Store
	users   UserDirectory
	servers ServerAllocator
	matches MatchRepository
	events  Publisher
	rng     engine.Rand
	now     func() time.Time
	cfg     Config
	log     *zap.Logger
}

func NewCoordinator(d Deps, cfg Config) *Coordinator {
	if cfg.MinCapacity < 2 {
		cfg.MinCapacity = 2
	}
	if cfg.DefaultCapacity < cfg.MinCapacity {
		cfg.DefaultCapacity = max(10, cfg.MinCapacity)
	}
	if cfg.QueueTTL <= 0 {
		cfg.QueueTTL = time.Hour
	}
	if !cfg.DefaultMode.Valid() {
		cfg.DefaultMode = engine.ModeDraft
	}
	if cfg.SlugRetries <= 0 {
		cfg.SlugRetries = 5
	}
	if cfg.AllocationTimeout <= 0 {
		cfg.AllocationTimeout = 20 * time.Second
	}

	c := &Coordinator{
		store:   d.Store,
		users:   d.Users,
		servers: d.Servers,
		matches: d.Matches,
		events:  d.Events,
		rng:     d.Rand,
		now:     d.Clock,
		cfg:     cfg,
		log:     d.Logger,
	}
	if c.events == nil {
		c.events = NopPublisher{}
	}
	if c.rng == nil {
		c.rng = engine.NewLockedRand(engine.NewRand(uint64(time.Now().UnixNano())))
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

type transition func(cur engine.Record) ([]engine.Event, engine.Record, error)

// mutate applies op atomically and publishes its events once the write has
// committed.
func (c *Coordinator) mutate(ctx context.Context, id string, op transition) (engine.Record, []engine.Event, error) {
	var events []engine.Event
	rec, err := c.store.Update(ctx, id, func(cur engine.Record) (engine.Record, error) {
		evts, next, err := op(cur)
		if err != nil {
			return engine.Record{}, err
		}
		events = evts
		return next, nil
	})
	if err != nil {
		return engine.Record{}, nil, err
	}
	c.publish(ctx, events...)
	return rec, events, nil
}

func (c *Coordinator) publish(ctx context.Context, events ...engine.Event) {
	for _, ev := range events {
		c.events.Publish(ctx, ev)
	}
}

// member builds a queue member from the directory. Lookup failures degrade to
// an unrated player named by id.
func (c *Coordinator) member(ctx context.Context, playerID string) engine.Member {
	m := engine.Member{PlayerID: playerID, DisplayName: playerID}
	if c.users == nil {
		return m
	}
	if name, err := c.users.DisplayNameOf(ctx, playerID); err != nil {
		c.log.Warn("display name lookup failed", zap.String("player_id", playerID), zap.Error(err))
	} else if name != "" {
		m.DisplayName = name
	}
	if rating, err := c.users.RatingOf(ctx, playerID); err != nil {
		c.log.Warn("rating lookup failed", zap.String("player_id", playerID), zap.Error(err))
	} else {
		m.Rating = rating
	}
	return m
}

// settle runs the follow-up a committed transition asks for: server
// allocation after a map pick, or surfacing a veto anomaly. A failed
// follow-up returns the committed record together with the error.
func (c *Coordinator) settle(ctx context.Context, rec engine.Record, events []engine.Event) (engine.Record, error) {
	for _, ev := range events {
		switch {
		case ev.Type == engine.EvtMapPicked:
			return c.allocate(ctx, rec)
		case ev.Type == engine.EvtQueueStatusChanged && ev.Status == engine.StatusVetoAnomaly:
			c.reportAnomaly(ctx, rec)
			return rec, engine.ErrVetoAnomaly
		}
	}
	return rec, nil
}
