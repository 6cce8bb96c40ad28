package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// only the owner of the token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a keyed lock shared by every process talking to the same redis.
// The key expires after ttl so a crashed holder cannot block a context forever.
type Redis struct {
	log     *slog.Logger
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
}

func NewRedis(log *slog.Logger, client *redis.Client, ttl, timeout time.Duration) *Redis {
	return &Redis{
		log:     log,
		client:  client,
		ttl:     ttl,
		timeout: timeout,
		retry:   25 * time.Millisecond,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	const op = "lock.Redis.Lock"

	token := uuid.NewString()
	deadline := time.Now().Add(r.timeout)

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, key, err)
		}
		if ok {
			return func() { r.release(key, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}
}

// release failures leave the key in place until ttl runs out
func (r *Redis) release(key, token string) {
	const op = "lock.Redis.release"

	if err := releaseScript.Run(context.Background(), r.client, []string{key}, token).Err(); err != nil {
		r.log.Error("lock release failed",
			slog.String("op", op),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
