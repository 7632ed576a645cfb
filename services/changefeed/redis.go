package changefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/kumbukumbu/core"
)

// RedisBus fans changes out to every API instance through a redis pub/sub channel.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	logger  core.Logger
}

var _ Bus = (*RedisBus)(nil)

func NewRedisBus(ctx context.Context, conf *core.Config, logger core.Logger) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        conf.Redis.Addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &RedisBus{rdb: rdb, channel: conf.Redis.Channel, logger: logger}, nil
}

func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding change")
	}
	return errors.Wrap(b.rdb.Publish(ctx, b.channel, raw).Err(), "publishing change")
}

func (b *RedisBus) Subscribe(ctx context.Context, h Handler) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures the subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Wrap(err, "subscribing to changes")
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					b.logger.Warn("bad change payload", err)
					continue
				}
				h(c)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

// New returns a RedisBus when redis is configured, a MemoryBus otherwise.
func New(ctx context.Context, conf *core.Config, logger core.Logger) (Bus, error) {
	if conf.Redis.Addr == "" {
		return NewMemoryBus(), nil
	}
	return NewRedisBus(ctx, conf, logger)
}
