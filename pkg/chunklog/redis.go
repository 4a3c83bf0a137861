package chunklog

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pipeline:chunklog:"

// RedisLog stores each run as a Redis list. The TTL is refreshed on every
// append so an abandoned run cleans itself up.
type RedisLog struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLog(rdb *redis.Client, ttl time.Duration) *RedisLog {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &RedisLog{rdb: rdb, ttl: ttl}
}

func key(run string) string {
	return keyPrefix + run
}

func (r *RedisLog) Append(ctx context.Context, run string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode chunk entry: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key(run), data)
	pipe.Expire(ctx, key(run), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chunk entry: %w", err)
	}
	return nil
}

func (r *RedisLog) Entries(ctx context.Context, run string) ([]Entry, error) {
	raw, err := r.rdb.LRange(ctx, key(run), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chunk log: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode chunk entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisLog) Drop(ctx context.Context, run string) error {
	return r.rdb.Del(ctx, key(run)).Err()
}

// NewRedisClient mirrors the URL-or-address fallback used across the services.
func NewRedisClient(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	return redis.NewClient(opt)
}
