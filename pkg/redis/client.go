package redis

import (
	"context"
	"time"

	"habitloop/pkg/config"

	"github.com/redis/go-redis/v9"
)

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// OwnerLock serializes score and progression writes for a single owner
// across server replicas using SET NX with a TTL.
type OwnerLock struct {
	client *redis.Client
}

func NewOwnerLock(client *redis.Client) *OwnerLock {
	return &OwnerLock{client: client}
}

// Acquire polls until the lock is taken or ctx is done.
func (l *OwnerLock) Acquire(ctx context.Context, ownerID string, ttl time.Duration) error {
	key := "lock:owner:" + ownerID
	for {
		ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (l *OwnerLock) Release(ctx context.Context, ownerID string) error {
	return l.client.Del(ctx, "lock:owner:"+ownerID).Err()
}
