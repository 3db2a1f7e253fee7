// Package redis backs the cursor store and label cache with a Redis
// instance, so several mailferry processes can share resume state.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/ports"
)

// Config holds the Redis connection settings.
type Config struct {
	// URL is a redis:// connection string.
	URL string

	// KeyPrefix namespaces every key. Defaults to "mailferry".
	KeyPrefix string

	// CursorTTL expires an untouched cursor. Zero keeps it forever.
	CursorTTL time.Duration
}

// Client wraps the go-redis client with mailferry key conventions. It
// implements both ports.CursorStore and ports.LabelCache.
type Client struct {
	rdb       *redis.Client
	prefix    string
	cursorTTL time.Duration
}

var (
	_ ports.CursorStore = (*Client)(nil)
	_ ports.LabelCache  = (*Client)(nil)
)

// NewClient connects and verifies the connection with a ping.
func NewClient(cfg Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "mailferry"
	}

	return &Client{rdb: rdb, prefix: prefix, cursorTTL: cfg.CursorTTL}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) cursorKey() string { return c.prefix + ":cursor" }

func (c *Client) labelKey() string { return c.prefix + ":labels" }

// Cursor returns the stored continuation token, empty when absent.
func (c *Client) Cursor(ctx context.Context) (string, error) {
	val, err := c.rdb.Get(ctx, c.cursorKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cursor: %w", err)
	}
	return val, nil
}

// SetCursor replaces the stored token. An empty value deletes the key.
func (c *Client) SetCursor(ctx context.Context, cursor string) error {
	if cursor == "" {
		if err := c.rdb.Del(ctx, c.cursorKey()).Err(); err != nil {
			return fmt.Errorf("clear cursor: %w", err)
		}
		return nil
	}
	if err := c.rdb.Set(ctx, c.cursorKey(), cursor, c.cursorTTL).Err(); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}

// Get looks up a label mapping in the shared hash.
func (c *Client) Get(ctx context.Context, name string) (domain.LabelID, bool, error) {
	val, err := c.rdb.HGet(ctx, c.labelKey(), name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read label mapping: %w", err)
	}
	return domain.LabelID(val), true, nil
}

// Put stores a label mapping.
func (c *Client) Put(ctx context.Context, name string, id domain.LabelID) error {
	if err := c.rdb.HSet(ctx, c.labelKey(), name, string(id)).Err(); err != nil {
		return fmt.Errorf("write label mapping: %w", err)
	}
	return nil
}

// Invalidate drops the whole mapping hash.
func (c *Client) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, c.labelKey()).Err(); err != nil {
		return fmt.Errorf("clear label mappings: %w", err)
	}
	return nil
}
