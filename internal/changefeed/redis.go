package changefeed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// DefaultRedisChannel is the pub/sub channel used by the Redis feed.
const DefaultRedisChannel = "kitchen:changes"

// Redis fans change events out over Redis pub/sub. Delivery is at most
// once; a subscriber that is disconnected misses events, which clients
// tolerate because every event only triggers a full re-fetch.
type Redis struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedis(rdb *redis.Client, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{rdb: rdb, channel: DefaultRedisChannel, log: log.Named("changefeed.redis")}
}

func (r *Redis) Publish(ctx context.Context, ev model.ChangeEvent) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, body).Err()
}

// Run subscribes and blocks until ctx is cancelled. It waits for the
// SUBSCRIBE confirmation before reading messages.
func (r *Redis) Run(ctx context.Context, h Handler) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decode([]byte(m.Payload))
			if err != nil {
				r.log.Warn("bad change payload", zap.Error(err))
				continue
			}
			h(ctx, ev)
		}
	}
}

// Close is a no-op: the client is owned by the caller.
func (r *Redis) Close() error { return nil }
