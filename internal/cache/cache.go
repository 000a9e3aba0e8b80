// Package cache is the process-external status cache. Entries carry
// the shaped check-status response and expire via a Redis TTL, so a
// horizontally scaled deployment shares hits and the cache stays
// bounded without a sweeper. The order ledger remains authoritative;
// a miss here is never an error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"checkout-service/internal/models"
)

type Client struct {
	rdb       *redis.Client
	statusTTL time.Duration
	lockTTL   time.Duration
}

// NewClient creates a new Redis-backed status cache
func NewClient(addr, password string, db int, statusTTL, lockTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:       rdb,
		statusTTL: statusTTL,
		lockTTL:   lockTTL,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetStatus returns the cached status snapshot for an order, with a
// second return of false on a miss or an expired entry.
func (c *Client) GetStatus(ctx context.Context, orderID string) (*models.StatusSnapshot, bool, error) {
	data, err := c.rdb.Get(ctx, statusKey(orderID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("status cache read failed: %w", err)
	}

	var snap models.StatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("status cache entry corrupt: %w", err)
	}
	return &snap, true, nil
}

// SetStatus stores a status snapshot under the configured TTL.
func (c *Client) SetStatus(ctx context.Context, orderID string, snap *models.StatusSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal status snapshot: %w", err)
	}
	return c.rdb.Set(ctx, statusKey(orderID), data, c.statusTTL).Err()
}

// AcquireCaptureLock takes the per-order capture lock. The lock
// serializes duplicate capture triggers for one order; it expires on
// its own so a crashed holder cannot wedge the order.
func (c *Client) AcquireCaptureLock(ctx context.Context, orderID string) (bool, error) {
	return c.rdb.SetNX(ctx, lockKey(orderID), "1", c.lockTTL).Result()
}

// ReleaseCaptureLock releases the per-order capture lock
func (c *Client) ReleaseCaptureLock(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, lockKey(orderID)).Err()
}

func statusKey(orderID string) string {
	return fmt.Sprintf("status:%s", orderID)
}

func lockKey(orderID string) string {
	return fmt.Sprintf("lock:capture:%s", orderID)
}
