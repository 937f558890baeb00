package fetcher

import (
	"context"

	"go.uber.org/zap"
	"stock-anomaly-sentry/internal/storage"
	"stock-anomaly-sentry/pkg/types"
)

// SeriesCache 历史行情缓存
type SeriesCache interface {
	Get(ctx context.Context, key string) (types.PriceSeries, bool)
	Store(key string, series types.PriceSeries)
}

// Archiver 日线数据归档
type Archiver interface {
	SaveBars(ctx context.Context, symbol string, kind types.SeriesKind, series types.PriceSeries) error
}

// CachedHistoryProvider 为历史数据提供者加上缓存和归档
type CachedHistoryProvider struct {
	upstream HistoryProvider
	cache    SeriesCache
	archiver Archiver // 可为nil
}

func NewCachedHistoryProvider(upstream HistoryProvider, cache SeriesCache, archiver Archiver) *CachedHistoryProvider {
	return &CachedHistoryProvider{
		upstream: upstream,
		cache:    cache,
		archiver: archiver,
	}
}

// FetchHistory 缓存命中直接返回，否则从上游获取后写入缓存和归档
func (p *CachedHistoryProvider) FetchHistory(ctx context.Context, symbol string, kind types.SeriesKind, lookback int) (types.PriceSeries, error) {
	key := storage.Key(symbol, kind, lookback)
	if series, ok := p.cache.Get(ctx, key); ok {
		zap.L().Debug("命中行情缓存", zap.String("key", key))
		return series, nil
	}

	series, err := p.upstream.FetchHistory(ctx, symbol, kind, lookback)
	if err != nil {
		return nil, err
	}

	// 空结果不缓存，下次重新获取
	if len(series) == 0 {
		return series, nil
	}
	p.cache.Store(key, series)

	if p.archiver != nil {
		if err := p.archiver.SaveBars(ctx, symbol, kind, series); err != nil {
			zap.L().Warn("⚠️ 日线数据归档失败", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	return series, nil
}
