package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	valueInFlight   = "pending"
	valueDispatched = "done"
)

// releaseScript deletes the key only while it is still in flight.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares keys between instances. In-flight reservations expire
// after inFlightTTL so a crashed instance does not block a key forever.
type RedisStore struct {
	client      *redis.Client
	serviceName string
	ttl         time.Duration
	inFlightTTL time.Duration
}

func NewRedisStore(addr, serviceName string, ttl, inFlightTTL time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if inFlightTTL <= 0 {
		inFlightTTL = time.Minute
	}
	return &RedisStore{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		serviceName: serviceName,
		ttl:         ttl,
		inFlightTTL: inFlightTTL,
	}
}

func (r *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:dispatch:%s", r.serviceName, key)
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), valueInFlight, r.inFlightTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Commit(ctx context.Context, key string) error {
	return r.client.Set(ctx, r.key(key), valueDispatched, r.ttl).Err()
}

func (r *RedisStore) Release(ctx context.Context, key string) error {
	err := releaseScript.Run(ctx, r.client, []string{r.key(key)}, valueInFlight).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
