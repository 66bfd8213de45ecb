package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Run with INTEGRATION_TEST=true and a Redis at REDIS_ADDR (default
// localhost:6379).
func TestRedisStore(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("skipping integration test; set INTEGRATION_TEST=true to run")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisConfig{Addr: addr, PoolSize: 32, MaxRetries: 1, RetryInterval: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	runStoreSuite(t, func(t *testing.T) Store {
		prefix := "pugtest-" + uuid.NewString()
		t.Cleanup(func() {
			keys, _ := client.Keys(ctx, prefix+":*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		})
		return NewRedisStore(client, prefix)
	})
}
