package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"greenledger/internal/kv"
	"greenledger/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

//go:embed scripts/cas_put.lua
var casPutScript string

//go:embed scripts/delete.lua
var deleteScript string

const (
	entryPrefix   = "kv:"
	channelPrefix = "kv-changes:"

	scansByFarmer   = "scans:farmer"
	scansByDistrict = "scans:district"
)

// Client is the Redis backend. Entries are hashes {v: version, d: data}
// written through a Lua compare-and-swap script that also publishes the
// change.
type Client struct {
	rdb          *redis.Client
	putScript    *redis.Script
	deleteScript *redis.Script
	logger       *zap.Logger
}

var _ kv.Store = (*Client)(nil)

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
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
		rdb:          rdb,
		putScript:    redis.NewScript(casPutScript),
		deleteScript: redis.NewScript(deleteScript),
		logger:       util.Named("kv-redis"),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection, for readiness probes
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get reads one entry
func (c *Client) Get(ctx context.Context, key string) (*kv.Entry, error) {
	fields, err := c.rdb.HGetAll(ctx, entryPrefix+key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, kv.ErrNotFound
	}

	var version int64
	if _, err := fmt.Sscanf(fields["v"], "%d", &version); err != nil {
		return nil, fmt.Errorf("corrupt version for %s: %w", key, err)
	}
	return &kv.Entry{Key: key, Value: []byte(fields["d"]), Version: version}, nil
}

// Put runs the CAS script
func (c *Client) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	result, err := c.putScript.Run(ctx, c.rdb, []string{entryPrefix + key},
		expectedVersion, value, channelPrefix+key, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cas put script failed: %w", err)
	}

	version, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	if version < 0 {
		return 0, kv.ErrConflict
	}
	return version, nil
}

// Delete removes one entry
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.deleteScript.Run(ctx, c.rdb, []string{entryPrefix + key}, channelPrefix+key, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete script failed: %w", err)
	}
	return nil
}

// Keys scans for keys with prefix
func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, entryPrefix+prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), entryPrefix))
	}
	return keys, iter.Err()
}

// Subscribe pattern-subscribes to change channels under prefix
func (c *Client) Subscribe(ctx context.Context, prefix string) (<-chan kv.Change, error) {
	pubsub := c.rdb.PSubscribe(ctx, channelPrefix+prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("psubscribe failed: %w", err)
	}

	ch := make(chan kv.Change, 64)
	go func() {
		defer close(ch)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change struct {
					Key     string `json:"key"`
					Version int64  `json:"version"`
					Deleted bool   `json:"deleted"`
				}
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					c.logger.Warn("Dropping malformed change message", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case ch <- kv.Change{Key: change.Key, Version: change.Version, Deleted: change.Deleted}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// IncrScanCounts bumps the per-farmer and per-district scan counters
func (c *Client) IncrScanCounts(ctx context.Context, farmerID, district string) error {
	pipe := c.rdb.Pipeline()
	if farmerID != "" {
		pipe.HIncrBy(ctx, scansByFarmer, farmerID, 1)
	}
	if district != "" {
		pipe.HIncrBy(ctx, scansByDistrict, district, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ScanCounts returns the per-farmer and per-district scan counters
func (c *Client) ScanCounts(ctx context.Context) (byFarmer, byDistrict map[string]int64, err error) {
	byFarmer, err = c.counters(ctx, scansByFarmer)
	if err != nil {
		return nil, nil, err
	}
	byDistrict, err = c.counters(ctx, scansByDistrict)
	if err != nil {
		return nil, nil, err
	}
	return byFarmer, byDistrict, nil
}

func (c *Client) counters(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		var n int64
		fmt.Sscanf(v, "%d", &n)
		out[k] = n
	}
	return out, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
