package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/telemetry"
)

const defaultTxRetries = 8

// RedisStore keeps each record as one JSON value under {prefix}:queue:{id}
// with the queue TTL as key expiry. Writes use WATCH/MULTI so concurrent
// requests against a queue serialize on the key.
//
// Side indexes:
//
//	{prefix}:queues         set of every queue id
//	{prefix}:owner:{owner}  set of queue ids per owner, for the quota
//
// Index entries whose record has expired are pruned lazily.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	txRetries int
	now       func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pug"
	}
	return &RedisStore{client: client, prefix: prefix, txRetries: defaultTxRetries, now: time.Now}
}

func (s *RedisStore) queueKey(id string) string    { return s.prefix + ":queue:" + id }
func (s *RedisStore) indexKey() string             { return s.prefix + ":queues" }
func (s *RedisStore) ownerKey(owner string) string { return s.prefix + ":owner:" + owner }

// watch runs fn under WATCH on keys, retrying when another client wrote a
// watched key first. fn re-reads everything on each attempt.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < s.txRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (s *RedisStore) ttl(rec engine.Record) time.Duration {
	return rec.Queue.ExpiresAt.Sub(s.now())
}

func (s *RedisStore) Create(ctx context.Context, rec engine.Record, maxPerOwner int) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.create", attribute.String("queue_id", rec.Queue.ID))
	defer func() { telemetry.EndSpan(span, err) }()

	ttl := s.ttl(rec)
	if ttl <= 0 {
		return fmt.Errorf("queue %s already expired: %w", rec.Queue.ID, engine.ErrBadRequest)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode queue %s: %w", rec.Queue.ID, err)
	}

	qKey, oKey := s.queueKey(rec.Queue.ID), s.ownerKey(rec.Queue.OwnerID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, qKey).Result()
		if err != nil {
			return unavailable("redis exists", err)
		}
		if n > 0 {
			return ErrSlugTaken
		}

		live, stale, err := s.ownedQueues(ctx, tx, oKey)
		if err != nil {
			return err
		}
		if maxPerOwner > 0 && live >= maxPerOwner {
			return quotaError(rec.Queue.OwnerID, maxPerOwner)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, qKey, payload, ttl)
			pipe.SAdd(ctx, s.indexKey(), rec.Queue.ID)
			pipe.SAdd(ctx, oKey, rec.Queue.ID)
			if len(stale) > 0 {
				pipe.SRem(ctx, oKey, stale...)
			}
			return nil
		})
		if err != nil {
			return unavailable("redis create", err)
		}
		return nil
	}, qKey, oKey)
}

// ownedQueues counts ids in the owner set that still have a record and
// returns the ones that do not.
func (s *RedisStore) ownedQueues(ctx context.Context, tx *redis.Tx, oKey string) (int, []any, error) {
	ids, err := tx.SMembers(ctx, oKey).Result()
	if err != nil {
		return 0, nil, unavailable("redis smembers", err)
	}
	live := 0
	var stale []any
	for _, id := range ids {
		n, err := tx.Exists(ctx, s.queueKey(id)).Result()
		if err != nil {
			return 0, nil, unavailable("redis exists", err)
		}
		if n > 0 {
			live++
		} else {
			stale = append(stale, id)
		}
	}
	return live, stale, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (rec engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.get", attribute.String("queue_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	raw, err := s.client.Get(ctx, s.queueKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Record{}, engine.ErrQueueNotFound
	}
	if err != nil {
		return engine.Record{}, unavailable("redis get", err)
	}
	return decode(id, raw)
}

func (s *RedisStore) List(ctx context.Context) (out []engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.list")
	defer func() { telemetry.EndSpan(span, err) }()

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, unavailable("redis smembers", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.queueKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("redis mget", err)
	}

	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		rec, err := decode(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(stale) > 0 {
		// Expired keys leave their ids behind.
		_ = s.client.SRem(ctx, s.indexKey(), stale...).Err()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Queue.CreatedAt.Before(out[j].Queue.CreatedAt) })
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (out engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.update", attribute.String("queue_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	qKey := s.queueKey(id)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, qKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return engine.ErrQueueNotFound
		}
		if err != nil {
			return unavailable("redis get", err)
		}
		cur, err := decode(id, raw)
		if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}
		ttl := s.ttl(next)
		if ttl <= 0 {
			return engine.ErrQueueNotFound
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode queue %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, qKey, payload, ttl)
			return nil
		})
		if err != nil {
			return unavailable("redis update", err)
		}
		out = next
		return nil
	}, qKey)
	if err != nil {
		return engine.Record{}, err
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string, check func(engine.Record) error) (out engine.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.delete", attribute.String("queue_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	qKey := s.queueKey(id)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, qKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return engine.ErrQueueNotFound
		}
		if err != nil {
			return unavailable("redis get", err)
		}
		cur, err := decode(id, raw)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(cur); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, qKey)
			pipe.SRem(ctx, s.indexKey(), id)
			pipe.SRem(ctx, s.ownerKey(cur.Queue.OwnerID), id)
			return nil
		})
		if err != nil {
			return unavailable("redis delete", err)
		}
		out = cur
		return nil
	}, qKey)
	if err != nil {
		return engine.Record{}, err
	}
	return out, nil
}

func decode(id string, raw []byte) (engine.Record, error) {
	var rec engine.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return engine.Record{}, fmt.Errorf("decode queue %s: %w", id, err)
	}
	return rec, nil
}
