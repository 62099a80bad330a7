package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/studyrag/internal/model"
)

func TestNewQueryCacheDefaults(t *testing.T) {
	cache := NewQueryCache(nil, nil)
	assert.False(t, cache.config.Enabled)
	assert.Equal(t, "assistant:query:", cache.config.KeyPrefix)

	cache = NewQueryCache(nil, &QueryCacheConfig{Enabled: true, TTL: time.Hour})
	assert.Equal(t, "assistant:query:", cache.config.KeyPrefix)
}

func TestQueryCacheDisabled(t *testing.T) {
	ctx := context.Background()
	cache := NewQueryCache(nil, &QueryCacheConfig{Enabled: false})

	// 未命中与禁用统一返回 (nil, nil)，调用方走完整查询流程
	resp, err := cache.Get(ctx, "骨骼由什么组成？")
	require.NoError(t, err)
	assert.Nil(t, resp)

	assert.NoError(t, cache.Set(ctx, "骨骼由什么组成？", &model.QueryResponse{}))
	assert.NoError(t, cache.Clear(ctx))
}

func TestQueryCacheNilRedis(t *testing.T) {
	ctx := context.Background()
	cache := NewQueryCache(nil, &QueryCacheConfig{Enabled: true, TTL: time.Hour})

	resp, err := cache.Get(ctx, "骨骼由什么组成？")
	require.NoError(t, err)
	assert.Nil(t, resp)

	assert.NoError(t, cache.Set(ctx, "骨骼由什么组成？", &model.QueryResponse{}))
	assert.NoError(t, cache.Clear(ctx))
}

func TestQueryCacheStatsDisabled(t *testing.T) {
	cache := NewQueryCache(nil, &QueryCacheConfig{Enabled: false})

	stats, err := cache.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"enabled": false}, stats)
}

func TestGenerateCacheKey(t *testing.T) {
	cache := NewQueryCache(nil, &QueryCacheConfig{KeyPrefix: "assistant:query:"})

	k1 := cache.generateCacheKey("骨骼由什么组成？")
	k2 := cache.generateCacheKey("骨骼由什么组成？")
	k3 := cache.generateCacheKey("肌肉由什么组成？")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.True(t, strings.HasPrefix(k1, "assistant:query:"))
}
