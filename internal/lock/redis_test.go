package lock

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Runs against a live server only: FLOW_TEST_REDIS=localhost:6379
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("FLOW_TEST_REDIS")
	if addr == "" {
		t.Skip("FLOW_TEST_REDIS is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedis_LockAndRelease(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	key := "flow:test:" + t.Name()

	l := NewRedis(discard, client, 5*time.Second, 100*time.Millisecond)

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	assert.Zero(t, client.Exists(ctx, key).Val())

	unlock, err = l.Lock(ctx, key)
	require.NoError(t, err)
	unlock()
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	key := "flow:test:" + t.Name()

	l := NewRedis(discard, client, 50*time.Millisecond, time.Second)

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	// ключ истёк и его занял другой процесс
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, client.Set(ctx, key, "other", time.Minute).Err())

	unlock()
	assert.Equal(t, "other", client.Get(ctx, key).Val())
	client.Del(ctx, key)
}

func TestRedis_ReleaseFailureIsLogged(t *testing.T) {
	addr := newTestRedis(t).Options().Addr
	ctx := context.Background()
	key := "flow:test:" + t.Name()

	client := redis.NewClient(&redis.Options{Addr: addr})
	var buf bytes.Buffer
	l := NewRedis(slog.New(slog.NewTextHandler(&buf, nil)), client, 200*time.Millisecond, time.Second)

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	unlock()

	assert.Contains(t, buf.String(), "lock release failed")
	assert.Contains(t, buf.String(), key)
}
