package allocator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

type fakePool struct {
	servers  map[string][]engine.ServerRef
	released []string
	err      error
}

func (f *fakePool) Claim(_ context.Context, ownerID, _ string) (*engine.ServerRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	free := f.servers[ownerID]
	if len(free) == 0 {
		return nil, nil
	}
	ref := free[0]
	f.servers[ownerID] = free[1:]
	return &ref, nil
}

func (f *fakePool) Release(_ context.Context, queueID string) error {
	f.released = append(f.released, queueID)
	return nil
}

var req = engine.AllocationRequest{QueueID: "ABC123", OwnerID: "owner", Map: "nuke"}

func TestChainPrefersOwnerServers(t *testing.T) {
	pool := &fakePool{servers: map[string][]engine.ServerRef{
		"owner": {{ID: "mine"}},
		"":      {{ID: "shared"}},
	}}
	chain := NewChain(zaptest.NewLogger(t), OwnerPool(pool), PublicPool(pool))

	ref, err := chain.Allocate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "mine", ref.ID)
	assert.Equal(t, "owner", ref.Source)

	ref, err = chain.Allocate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "shared", ref.ID)
	assert.Equal(t, "public", ref.Source)

	_, err = chain.Allocate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoServer)
}

func TestChainSkipsFailingSource(t *testing.T) {
	broken := &fakePool{err: errors.New("db down")}
	healthy := &fakePool{servers: map[string][]engine.ServerRef{"": {{ID: "shared"}}}}
	chain := NewChain(zaptest.NewLogger(t), OwnerPool(broken), PublicPool(healthy))

	ref, err := chain.Allocate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "shared", ref.ID)

	chain = NewChain(zaptest.NewLogger(t), OwnerPool(broken))
	_, err = chain.Allocate(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner: db down")
}

func TestChainRelease(t *testing.T) {
	pool := &fakePool{}
	chain := NewChain(nil, OwnerPool(pool), PublicPool(pool))
	require.NoError(t, chain.Release(context.Background(), "ABC123"))
	assert.Equal(t, []string{"ABC123"}, pool.released)
}

func TestProvisioner(t *testing.T) {
	t.Run("provisions", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body provisionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "nuke", body.Map)
			assert.Equal(t, "ABC123", body.QueueID)
			_ = json.NewEncoder(w).Encode(provisionResponse{ID: "eph-1", Host: "1.2.3.4", Port: 27015, Password: "pw"})
		}))
		defer srv.Close()

		ref, err := NewChain(nil, NewProvisioner(srv.URL, time.Second)).Allocate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, engine.ServerRef{ID: "eph-1", Host: "1.2.3.4", Port: 27015, Password: "pw", Source: "ephemeral"}, *ref)
	})

	t.Run("capacity exhausted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewProvisioner(srv.URL, time.Second).Allocate(context.Background(), req)
		assert.ErrorIs(t, err, ErrNoServer)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewProvisioner(srv.URL, time.Second).Allocate(context.Background(), req)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoServer)
		assert.Contains(t, err.Error(), "500")
	})
}
