package localstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBlob keeps values in Redis under prefix+key, without expiry.
type RedisBlob struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBlob(rdb *redis.Client, prefix string) *RedisBlob {
	return &RedisBlob{rdb: rdb, prefix: prefix}
}

func (b *RedisBlob) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := b.rdb.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMissing
	}
	return raw, err
}

func (b *RedisBlob) Put(ctx context.Context, key string, value []byte) error {
	return b.rdb.Set(ctx, b.prefix+key, value, 0).Err()
}

func (b *RedisBlob) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, b.prefix+key).Err()
}
