package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var defaultOptions = &RedisOptions{
	Addr:     "localhost:6379",
	Password: "",
	DB:       0,
}

// SetDefaultRedisOptions sets the default options for Redis connections
func SetDefaultRedisOptions(options *RedisOptions) {
	defaultOptions = options
}

// GetRedisClient creates a new Redis client using the default options
func GetRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     defaultOptions.Addr,
		Password: defaultOptions.Password,
		DB:       defaultOptions.DB,
	})
}

const scanBatch = 500

// ReportCache stores finished snapshot reports keyed by log content and position.
// Replay is a pure function of the log and the index, so an entry never goes stale
// while the fingerprint matches.
type ReportCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCache creates a cache. ttl 0 keeps entries until evicted by Redis.
func NewReportCache(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "clob"
	}
	return &ReportCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Key builds <prefix>:<log>:<fingerprint>:<instrument>:<index>
func (c *ReportCache) Key(log, fingerprint, instrument string, index int64) string {
	return strings.Join([]string{c.prefix, log, fingerprint, instrument, strconv.FormatInt(index, 10)}, ":")
}

// Get returns the cached report; a miss is (nil, false, nil)
func (c *ReportCache) Get(ctx context.Context, log, fingerprint, instrument string, index int64) (*core.Snapshot, bool, error) {
	key := c.Key(log, fingerprint, instrument, index)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		c.logger.Error("failed to get report",
			zap.String("key", key),
			zap.Error(err))
		return nil, false, err
	}

	var snapshot core.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// A corrupt entry is treated as a miss and overwritten by the next Set
		c.logger.Warn("failed to unmarshal report",
			zap.String("key", key),
			zap.Error(err))
		return nil, false, nil
	}
	return &snapshot, true, nil
}

// Set stores a report
func (c *ReportCache) Set(ctx context.Context, log, fingerprint string, snapshot *core.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	key := c.Key(log, fingerprint, snapshot.Instrument, snapshot.Index)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("failed to store report",
			zap.String("key", key),
			zap.Error(err))
		return err
	}
	return nil
}

// Invalidate deletes every cached report of a log and returns how many were removed
func (c *ReportCache) Invalidate(ctx context.Context, log string) (int, error) {
	pattern := fmt.Sprintf("%s:%s:*", c.prefix, log)

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	c.logger.Info("invalidated reports",
		zap.String("log", log),
		zap.Int("removed", removed))
	return removed, nil
}

// Ping checks the connection
func (c *ReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (c *ReportCache) Close() error {
	return c.client.Close()
}
