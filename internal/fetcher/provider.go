package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"stock-anomaly-sentry/pkg/types"
)

// ErrSpotUnavailable 行情源暂时没有实时价格（停牌、休市或接口故障）
var ErrSpotUnavailable = errors.New("实时价格不可用")

// HistoryProvider 日线历史数据提供者
// 返回的序列按交易日从新到旧排列且日期不重复，空序列是合法结果
type HistoryProvider interface {
	FetchHistory(ctx context.Context, symbol string, kind types.SeriesKind, lookback int) (types.PriceSeries, error)
}

// SpotProvider 实时价格提供者
type SpotProvider interface {
	FetchSpot(ctx context.Context, symbol string, kind types.SeriesKind) (types.Quote, error)
}

// StatusError HTTP状态码错误
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP状态码错误: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
