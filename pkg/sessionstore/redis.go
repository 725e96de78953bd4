package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis keeps one hash per session. Every access slides the hash's TTL.
type Redis struct {
	client goredis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedis(client goredis.UniversalClient, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, field string) ([]byte, bool, error) {
	var get *goredis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		get = pipe.HGet(ctx, r.key, field)
		r.touch(ctx, pipe)
		return nil
	})
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session get %s: %w", field, err)
	}
	v, err := get.Bytes()
	if err != nil {
		return nil, false, fmt.Errorf("session get %s: %w", field, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, field string, value []byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, r.key, field, value)
		r.touch(ctx, pipe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session set %s: %w", field, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, field string) error {
	if err := r.client.HDel(ctx, r.key, field).Err(); err != nil {
		return fmt.Errorf("session remove %s: %w", field, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

func (r *Redis) touch(ctx context.Context, pipe goredis.Pipeliner) {
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
}
