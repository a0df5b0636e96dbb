package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"soilchat/internal/config"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 6379
	pingTimeout = 3 * time.Second
)

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

// ErrConflict is returned by WatchHSet when the guard key changed while the
// value was being produced.
var ErrConflict = redis.TxFailedErr

var errNotInitialized = errors.New("redis client not initialized")

// Client is the hash store behind the chat history cache. Every method
// tolerates a nil receiver so callers can run without redis.
type Client struct {
	inner *redis.Client
}

// Options translates the redis section of the config into go-redis options.
func Options(cfg config.RedisConfig) *redis.Options {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	return &redis.Options{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  pingTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// New connects using cfg and fails when the server does not answer a ping.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts := Options(cfg)
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{inner: client}, nil
}

// HSet stores field in the hash at key and refreshes the key TTL in the same
// transaction.
func (c *Client) HSet(ctx context.Context, key, field string, value []byte, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	_, err := c.inner.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, value)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

// WatchHSet watches guard, calls produce and then writes its result into
// field of key with ttl. The write is skipped with ErrConflict when guard was
// modified in between. Errors from produce are returned as is.
func (c *Client) WatchHSet(ctx context.Context, guard, key, field string, ttl time.Duration, produce func() ([]byte, error)) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Watch(ctx, func(tx *redis.Tx) error {
		value, err := produce()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, value)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}, guard)
}

// Bump increments guard and deletes keys in one transaction. Pending
// WatchHSet calls on guard fail with ErrConflict.
func (c *Client) Bump(ctx context.Context, guard string, guardTTL time.Duration, keys ...string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	_, err := c.inner.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, guard)
		if guardTTL > 0 {
			pipe.Expire(ctx, guard, guardTTL)
		}
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	return err
}

// HGet fetches one hash field. A missing field returns ErrCacheMiss.
func (c *Client) HGet(ctx context.Context, key, field string) ([]byte, error) {
	if c == nil || c.inner == nil {
		return nil, errNotInitialized
	}
	return c.inner.HGet(ctx, key, field).Bytes()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	if c == nil || c.inner == nil {
		return 0, errNotInitialized
	}
	return c.inner.TTL(ctx, key).Result()
}

// FlushDB empties the selected database. Used by tests.
func (c *Client) FlushDB(ctx context.Context) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.FlushDB(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
