package locksvc

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

// NewRedisClient connects to redis and checks the connection.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type redisLocker struct {
	client *redislock.Client
	retry  redislock.RetryStrategy
}

var _ core.Locker = (*redisLocker)(nil)

// NewRedisLocker hands out locks shared by every instance connected to the same redis.
func NewRedisLocker(client redis.UniversalClient) core.Locker {
	return &redisLocker{
		client: redislock.New(client),
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	}
}

func (l *redisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (core.Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, core.ErrLockNotObtained
		}
		return nil, errors.Wrap(err, "obtaining redis lock")
	}
	return lock, nil
}
