package clock

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMarkerStore shares the expiry marker between shells or machines that
// use the same backend login.
type RedisMarkerStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisMarkerStore(client redis.UniversalClient, prefix string) *RedisMarkerStore {
	if prefix == "" {
		prefix = "datetally"
	}
	return &RedisMarkerStore{client: client, prefix: prefix}
}

func (s *RedisMarkerStore) Load(ctx context.Context) (int64, bool, error) {
	if s.client == nil {
		return 0, false, nil
	}
	raw, err := s.client.Get(ctx, s.key()).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	expiry, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return expiry, true, nil
}

// Save stores the marker with a key TTL one minute past the marker so stale
// keys disappear on their own.
func (s *RedisMarkerStore) Save(ctx context.Context, expiryMillis int64) error {
	if s.client == nil {
		return nil
	}
	ttl := time.Until(time.UnixMilli(expiryMillis)) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return s.client.Set(ctx, s.key(), strconv.FormatInt(expiryMillis, 10), ttl).Err()
}

func (s *RedisMarkerStore) Clear(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key()).Err()
}

func (s *RedisMarkerStore) key() string {
	return s.prefix + ":" + MarkerKey
}
