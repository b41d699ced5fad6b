package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters for the Redis mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis mirrors room events over Redis Pub/Sub.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects and pings. It returns an error if the connection cannot
// be established.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Redis{rdb: rdb, prefix: cfg.Prefix}, nil
}

// Publish sends payload on the room's channel.
func (r *Redis) Publish(ctx context.Context, room string, payload []byte) error {
	channel := Channel(r.prefix, room)
	if err := r.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads for room, or for every room with
// AllRooms. The returned channel closes when ctx is cancelled.
func (r *Redis) Subscribe(ctx context.Context, room string) (<-chan []byte, error) {
	channel := Channel(r.prefix, room)

	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = r.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = r.rdb.Subscribe(ctx, channel)
	}

	// wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

var (
	_ Bus       = (*Redis)(nil)
	_ Bus       = (*Memory)(nil)
	_ Publisher = Nop{}
)
