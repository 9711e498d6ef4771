package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SingleCache backs a BaseCache with one go-redis endpoint — the trivial
// non-sharded variant, for callers who don't need a cluster.Client.
type SingleCache struct {
	rdb *redis.Client
	ctx context.Context
}

// NewSingleCache wraps rdb as a Backend.
func NewSingleCache(rdb *redis.Client) *SingleCache {
	return &SingleCache{rdb: rdb, ctx: context.Background()}
}

func (s *SingleCache) Get(key string) ([]byte, error) {
	val, err := s.rdb.Get(s.ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *SingleCache) Set(key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(s.ctx, key, value, ttl).Err()
}

func (s *SingleCache) Delete(key string) error {
	return s.rdb.Del(s.ctx, key).Err()
}

func (s *SingleCache) GetMany(keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.rdb.MGet(s.ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[i] = []byte(str)
	}
	return out, nil
}

// SetMany pipelines one SET per key: go-redis has no variadic "many keys,
// many values, one TTL each" command, so pipelining is the closest
// equivalent to a single round trip.
func (s *SingleCache) SetMany(mapping map[string][]byte, ttl time.Duration) error {
	if len(mapping) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for k, v := range mapping {
		pipe.Set(s.ctx, k, v, ttl)
	}
	_, err := pipe.Exec(s.ctx)
	return err
}

func (s *SingleCache) DeleteMany(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(s.ctx, keys...).Err()
}
