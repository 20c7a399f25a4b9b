package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client whose PING the Detection Queue
// folds into Healthy() as an optional health backstop.
type Client struct {
	Raw *redis.Client
}

// New creates a Redis client from the provided config. Returns an
// error if the Redis URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	r := redis.NewClient(opt)
	return &Client{Raw: r}, nil
}

// Ping verifies the backing store responds — the Detection Queue's
// healthy() probe per spec.md §4.D delegates to this.
func (c *Client) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Raw.Ping(ctx).Err()
}
