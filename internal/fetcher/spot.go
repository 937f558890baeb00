package fetcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"stock-anomaly-sentry/pkg/types"
)

// ErrNoPrice 实时价格不可用且历史序列为空
var ErrNoPrice = errors.New("没有可用的当前价格")

// SpotPrice 已确定来源的当前价格
type SpotPrice struct {
	Quote  types.Quote
	Source types.PriceSource
}

// ResolveSpot 先取实时价格，失败时退回 series 中最新一个交易日的收盘价
func ResolveSpot(ctx context.Context, provider SpotProvider, symbol string, kind types.SeriesKind, series types.PriceSeries) (SpotPrice, error) {
	quote, err := provider.FetchSpot(ctx, symbol, kind)
	if err == nil {
		return SpotPrice{Quote: quote, Source: types.SourceLive}, nil
	}
	if ctx.Err() != nil {
		return SpotPrice{}, ctx.Err()
	}

	latest, ok := series.Latest()
	if !ok {
		return SpotPrice{}, fmt.Errorf("%w: %s: %v", ErrNoPrice, symbol, err)
	}

	zap.L().Warn("⚠️ 实时价格获取失败，使用上一交易日收盘价",
		zap.String("symbol", symbol),
		zap.String("kind", string(kind)),
		zap.Float64("close", latest.Close),
		zap.Time("trade_date", latest.TradeDate),
		zap.Error(err))

	return SpotPrice{
		Quote:  types.Quote{Symbol: symbol, Price: latest.Close},
		Source: types.SourceLastClose,
	}, nil
}
