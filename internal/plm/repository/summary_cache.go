package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryCache 缓存按文档版本计算出的汇总结果（成本、合规）
type SummaryCache interface {
	Get(ctx context.Context, docID string, revision int, kind string, dest interface{}) (bool, error)
	Set(ctx context.Context, docID string, revision int, kind string, value interface{}) error
}

// RedisSummaryCache 基于 Redis 的汇总缓存，键包含版本号，旧版本自然过期
type RedisSummaryCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisSummaryCache(rdb *redis.Client, ttl time.Duration) *RedisSummaryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSummaryCache{rdb: rdb, ttl: ttl, prefix: "bom:summary"}
}

func (c *RedisSummaryCache) key(docID string, revision int, kind string) string {
	return fmt.Sprintf("%s:%s:%s:%d", c.prefix, kind, docID, revision)
}

func (c *RedisSummaryCache) Get(ctx context.Context, docID string, revision int, kind string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, c.key(docID, revision, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode cached summary: %w", err)
	}
	return true, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, docID string, revision int, kind string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(docID, revision, kind), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// NopSummaryCache 不缓存
type NopSummaryCache struct{}

func (NopSummaryCache) Get(context.Context, string, int, string, interface{}) (bool, error) {
	return false, nil
}

func (NopSummaryCache) Set(context.Context, string, int, string, interface{}) error {
	return nil
}
