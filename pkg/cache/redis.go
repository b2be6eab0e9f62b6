package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"event-ticket/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to Redis and pings it once.
func NewRedisClient(config utils.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", config.Addr, err)
	}
	return client, nil
}

// SeatMapCache keeps JSON snapshots of event seat maps. It is a read-side
// cache only: misses and Redis failures fall through to the database.
type SeatMapCache interface {
	Get(ctx context.Context, eventID string, dst any) (bool, error)
	Set(ctx context.Context, eventID string, value any) error
	Invalidate(ctx context.Context, eventID string) error
}

type seatMapCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewSeatMapCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) SeatMapCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &seatMapCache{
		rdb: rdb,
		ttl: ttl,
		log: log.With(zap.String("component", "seat_cache")),
	}
}

func SeatMapKey(eventID string) string {
	return "seats:" + eventID
}

func (c *seatMapCache) Get(ctx context.Context, eventID string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, SeatMapKey(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get seat map %s: %w", eventID, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// a stale or foreign payload is treated as a miss
		c.log.Warn("Discarding unreadable cache entry", zap.String("event_id", eventID), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (c *seatMapCache) Set(ctx context.Context, eventID string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal seat map %s: %w", eventID, err)
	}
	if err := c.rdb.Set(ctx, SeatMapKey(eventID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set seat map %s: %w", eventID, err)
	}
	return nil
}

func (c *seatMapCache) Invalidate(ctx context.Context, eventID string) error {
	if err := c.rdb.Del(ctx, SeatMapKey(eventID)).Err(); err != nil {
		return fmt.Errorf("invalidate seat map %s: %w", eventID, err)
	}
	return nil
}

// Noop is used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Noop) Set(context.Context, string, any) error         { return nil }
func (Noop) Invalidate(context.Context, string) error       { return nil }
