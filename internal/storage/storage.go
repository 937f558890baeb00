package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"stock-anomaly-sentry/pkg/types"
)

const keyPrefix = "sentry:series:"

type cacheEntry struct {
	series    types.PriceSeries
	expiresAt time.Time
}

// SeriesCache 历史行情缓存，内存为主，配置Redis时同步备份
type SeriesCache struct {
	entries     map[string]cacheEntry
	mutex       sync.RWMutex
	ttl         time.Duration
	redisClient *redis.Client
	useRedis    bool
	now         func() time.Time
}

// NewSeriesCache 创建缓存，Redis不可用时使用纯内存模式
func NewSeriesCache(redisConfig types.RedisConfig, ttl time.Duration) *SeriesCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	sc := &SeriesCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}

	if redisConfig.URL == "" {
		zap.L().Info("🔧 未配置Redis，使用纯内存缓存")
		return sc
	}

	sc.redisClient = redis.NewClient(&redis.Options{
		Addr:     redisConfig.URL,
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := sc.redisClient.Ping(ctx).Result(); err != nil {
		zap.L().Warn("⚠️ Redis连接失败，使用纯内存缓存", zap.Error(err))
		_ = sc.redisClient.Close()
		sc.redisClient = nil
		return sc
	}

	zap.L().Info("✅ Redis连接成功", zap.String("addr", redisConfig.URL))
	sc.useRedis = true
	return sc
}

// Key 缓存键
func Key(symbol string, kind types.SeriesKind, lookback int) string {
	return fmt.Sprintf("%s%s:%s:%d", keyPrefix, kind, symbol, lookback)
}

// Get 读取缓存，内存未命中时尝试从Redis恢复
func (sc *SeriesCache) Get(ctx context.Context, key string) (types.PriceSeries, bool) {
	sc.mutex.RLock()
	entry, ok := sc.entries[key]
	sc.mutex.RUnlock()

	if ok && sc.now().Before(entry.expiresAt) {
		return entry.series, true
	}
	if !sc.useRedis {
		return nil, false
	}

	var getCmd *redis.StringCmd
	var ttlCmd *redis.DurationCmd
	_, err := sc.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.Get(ctx, key)
		ttlCmd = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("Redis读取失败", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	value, err := getCmd.Bytes()
	if err != nil {
		return nil, false
	}

	var series types.PriceSeries
	if err := json.Unmarshal(value, &series); err != nil {
		zap.L().Warn("Redis缓存数据损坏", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	// 内存中的副本不晚于Redis中的过期
	ttl := ttlCmd.Val()
	if ttl <= 0 || ttl > sc.ttl {
		ttl = sc.ttl
	}
	sc.put(key, series, ttl)
	return series, true
}

// Store 写入缓存，并异步备份到Redis
func (sc *SeriesCache) Store(key string, series types.PriceSeries) {
	sc.put(key, series, sc.ttl)

	if sc.useRedis {
		go sc.backupToRedis(key, series)
	}
}

func (sc *SeriesCache) put(key string, series types.PriceSeries, ttl time.Duration) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	sc.entries[key] = cacheEntry{series: series, expiresAt: sc.now().Add(ttl)}

	// 顺带清理过期数据
	now := sc.now()
	for k, e := range sc.entries {
		if !now.Before(e.expiresAt) {
			delete(sc.entries, k)
		}
	}
}

// backupToRedis 备份数据到Redis，过期时间与内存一致
func (sc *SeriesCache) backupToRedis(key string, series types.PriceSeries) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	value, err := json.Marshal(series)
	if err != nil {
		zap.L().Warn("序列化行情数据失败", zap.Error(err))
		return
	}

	if err := sc.redisClient.Set(ctx, key, value, sc.ttl).Err(); err != nil {
		zap.L().Warn("Redis存储失败", zap.String("key", key), zap.Error(err))
	}
}

// Stats 缓存统计信息
func (sc *SeriesCache) Stats(ctx context.Context) map[string]interface{} {
	sc.mutex.RLock()
	stats := map[string]interface{}{
		"redis_enabled":  sc.useRedis,
		"memory_entries": len(sc.entries),
	}
	sc.mutex.RUnlock()

	if sc.useRedis {
		keys, err := sc.redisClient.Keys(ctx, keyPrefix+"*").Result()
		if err == nil {
			stats["redis_keys"] = len(keys)
		} else {
			stats["redis_error"] = err.Error()
		}
	}

	return stats
}

// Close 关闭Redis连接
func (sc *SeriesCache) Close() error {
	if sc.redisClient == nil {
		return nil
	}
	return sc.redisClient.Close()
}
