package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultRedisTimeout = 5 * time.Second

// ConnectRedis opens a client and checks it with a ping.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, defaultRedisTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisStore keeps one profile's keys in a single Redis hash.
// Key format: photostockage:state:<profile>
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, profile string) *RedisStore {
	return &RedisStore{client: client, key: "photostockage:state:" + profile}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis store get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		return fmt.Errorf("redis store set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, keys...).Err(); err != nil {
		return fmt.Errorf("redis store delete: %w", err)
	}
	return nil
}

// DeleteIf runs under WATCH on the profile hash. A concurrent write aborts
// the transaction and reports nothing deleted.
func (s *RedisStore) DeleteIf(ctx context.Context, cond func(map[string]string) bool, keys ...string) (bool, error) {
	deleted := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		values, err := tx.HGetAll(ctx, s.key).Result()
		if err != nil {
			return err
		}
		if !cond(values) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, s.key, keys...)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}, s.key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis store conditional delete: %w", err)
	}
	return deleted, nil
}

// RedisBroker delivers signals to local subscribers immediately and to
// other processes through Redis pub/sub. The message body only names the
// origin so a process can skip its own echo.
type RedisBroker struct {
	local   *LocalBroker
	client  *redis.Client
	channel string
	origin  string
	log     zerolog.Logger
}

func NewRedisBroker(client *redis.Client, profile string, log zerolog.Logger) *RedisBroker {
	return &RedisBroker{
		local:   NewLocalBroker(),
		client:  client,
		channel: "photostockage:session:" + profile,
		origin:  uuid.NewString(),
		log:     log,
	}
}

func (b *RedisBroker) Publish(ctx context.Context) error {
	b.local.deliver()
	if err := b.client.Publish(ctx, b.channel, b.origin).Err(); err != nil {
		return fmt.Errorf("redis broker publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(fn func()) func() {
	return b.local.Subscribe(fn)
}

// Run relays remote signals until ctx is cancelled. ready, when non-nil, is
// closed once the subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis broker subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload == b.origin {
				continue
			}
			b.log.Debug().Str("channel", msg.Channel).Msg("remote session change")
			b.local.deliver()
		}
	}
}
