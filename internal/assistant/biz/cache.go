package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 查询结果缓存。
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "assistant:query:",
		}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "assistant:query:"
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// generateCacheKey 基于查询文本生成缓存键（使用 SHA256 哈希）。
func (c *QueryCache) generateCacheKey(query string) string {
	hash := sha256.Sum256([]byte(query))
	hashStr := hex.EncodeToString(hash[:])
	return c.config.KeyPrefix + hashStr
}

// Get 从缓存获取查询结果，未命中返回 (nil, nil)。
func (c *QueryCache) Get(ctx context.Context, query string) (*model.QueryResponse, error) {
	if !c.config.Enabled || c.redis == nil {
		return nil, nil
	}

	cacheKey := c.generateCacheKey(query)

	data, err := c.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == goredis.Nil {
			logger.Debugw("cache miss", "query", query, "key", cacheKey)
			return nil, nil
		}
		logger.Warnw("failed to get from cache", "error", err.Error(), "key", cacheKey)
		return nil, err
	}

	var resp model.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warnw("failed to unmarshal cached response", "error", err.Error(), "key", cacheKey)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, cacheKey).Err()
		return nil, err
	}

	logger.Infow("cache hit", "query", query, "key", cacheKey, "total_results", resp.Metadata.TotalResults)
	return &resp, nil
}

// Set 将查询结果写入缓存。
func (c *QueryCache) Set(ctx context.Context, query string, resp *model.QueryResponse) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	cacheKey := c.generateCacheKey(query)

	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warnw("failed to marshal response for caching", "error", err.Error())
		return err
	}

	err = c.redis.Set(ctx, cacheKey, data, c.config.TTL).Err()
	if err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", cacheKey)
		return err
	}

	logger.Infow("cached query response", "query", query, "key", cacheKey, "ttl", c.config.TTL)
	return nil
}

// Clear 清除所有查询缓存。
func (c *QueryCache) Clear(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	// 使用 SCAN 命令查找所有匹配的键
	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	deletedCount := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
		} else {
			deletedCount++
		}
	}

	if err := iter.Err(); err != nil {
		logger.Warnw("error during cache scan", "error", err.Error())
		return err
	}

	logger.Infow("cleared query cache", "deleted_count", deletedCount)
	return nil
}

// GetStats 获取缓存统计信息。
func (c *QueryCache) GetStats(ctx context.Context) (map[string]interface{}, error) {
	if !c.config.Enabled || c.redis == nil {
		return map[string]interface{}{
			"enabled": false,
		}, nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
