package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

func newRecord(id, owner string, now time.Time, ttl time.Duration) engine.Record {
	_, rec := engine.NewRecord(id, engine.Member{PlayerID: owner}, 4, engine.ModeDraft, false,
		engine.Rules{MapPool: []string{"a", "b", "c"}}, now, ttl)
	return rec
}

// runStoreSuite checks the behaviour every Store implementation shares.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	now := time.Now()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		rec := newRecord("q-create", "owner-1", now, time.Hour)
		require.NoError(t, s.Create(ctx, rec, 1))

		got, err := s.Get(ctx, "q-create")
		require.NoError(t, err)
		assert.Equal(t, "owner-1", got.Queue.OwnerID)
		assert.Len(t, got.Queue.Members, 1)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("q-dup", "owner-a", now, time.Hour), 0))
		err := s.Create(ctx, newRecord("q-dup", "owner-b", now, time.Hour), 0)
		assert.ErrorIs(t, err, ErrSlugTaken)
		assert.ErrorIs(t, err, engine.ErrConflict)
	})

	t.Run("owner quota", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("q-quota-1", "owner-q", now, time.Hour), 1))
		err := s.Create(ctx, newRecord("q-quota-2", "owner-q", now, time.Hour), 1)
		assert.ErrorIs(t, err, engine.ErrQuotaExceeded)

		_, err = s.Delete(ctx, "q-quota-1", nil)
		require.NoError(t, err)
		assert.NoError(t, s.Create(ctx, newRecord("q-quota-2", "owner-q", now, time.Hour), 1))
	})

	t.Run("missing queue", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, engine.ErrNotFound)
		_, err = s.Update(ctx, "nope", func(r engine.Record) (engine.Record, error) { return r, nil })
		assert.ErrorIs(t, err, engine.ErrNotFound)
		_, err = s.Delete(ctx, "nope", nil)
		assert.ErrorIs(t, err, engine.ErrNotFound)
	})

	t.Run("failed update writes nothing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("q-abort", "owner-x", now, time.Hour), 0))

		boom := errors.New("boom")
		_, err := s.Update(ctx, "q-abort", func(r engine.Record) (engine.Record, error) {
			r.Queue.Status = engine.StatusCompleted
			return r, boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Get(ctx, "q-abort")
		require.NoError(t, err)
		assert.Equal(t, engine.StatusWaiting, got.Queue.Status)
	})

	t.Run("delete check can refuse", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("q-guard", "owner-g", now, time.Hour), 0))
		_, err := s.Delete(ctx, "q-guard", func(engine.Record) error { return engine.ErrNotOwner })
		assert.ErrorIs(t, err, engine.ErrForbidden)

		_, err = s.Get(ctx, "q-guard")
		assert.NoError(t, err)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		s := newStore(t)
		rec := newRecord("q-race", "owner-r", now, time.Hour)
		rec.Queue.Capacity = 64
		require.NoError(t, s.Create(ctx, rec, 0))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for {
					_, err := s.Update(ctx, "q-race", func(r engine.Record) (engine.Record, error) {
						r.Queue.Members = append(r.Queue.Members, engine.Member{PlayerID: fmt.Sprintf("p%d", i)})
						return r, nil
					})
					if !errors.Is(err, ErrContention) {
						assert.NoError(t, err)
						return
					}
				}
			}(i)
		}
		wg.Wait()

		got, err := s.Get(ctx, "q-race")
		require.NoError(t, err)
		assert.Len(t, got.Queue.Members, 21)
	})

	t.Run("list", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newRecord("q-list-1", "owner-l1", now, time.Hour), 0))
		require.NoError(t, s.Create(ctx, newRecord("q-list-2", "owner-l2", now, time.Hour), 0))

		recs, err := s.List(ctx)
		require.NoError(t, err)
		ids := map[string]bool{}
		for _, r := range recs {
			ids[r.Queue.ID] = true
		}
		assert.True(t, ids["q-list-1"])
		assert.True(t, ids["q-list-2"])
	})
}
