package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"stock-anomaly-sentry/pkg/types"
)

// eastmoneySpotResponse 实时行情接口响应，fltt=2 时价格为浮点数，无成交时为 "-"
type eastmoneySpotResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Price json.RawMessage `json:"f43"`
		Code  string          `json:"f57"`
		Name  string          `json:"f58"`
	} `json:"data"`
}

// FetchSpot 获取实时价格，没有有效价格时返回 ErrSpotUnavailable
func (e *EastmoneyClient) FetchSpot(ctx context.Context, symbol string, kind types.SeriesKind) (types.Quote, error) {
	query := url.Values{}
	query.Set("secid", secID(symbol, kind))
	query.Set("fields", "f43,f57,f58")
	query.Set("fltt", "2")
	query.Set("invt", "2")
	requestURL := e.spotURL + "?" + query.Encode()

	var resp eastmoneySpotResponse
	if err := e.client.GetJSON(ctx, requestURL, &resp); err != nil {
		return types.Quote{}, fmt.Errorf("%w: %s: %v", ErrSpotUnavailable, symbol, err)
	}
	if resp.Data == nil {
		return types.Quote{}, fmt.Errorf("%w: %s 无行情数据", ErrSpotUnavailable, symbol)
	}

	var price float64
	if err := json.Unmarshal(resp.Data.Price, &price); err != nil || price <= 0 {
		// 停牌或未开盘时价格字段为 "-"
		return types.Quote{}, fmt.Errorf("%w: %s 价格字段为 %s", ErrSpotUnavailable, symbol, string(resp.Data.Price))
	}

	zap.L().Debug("📈 获取实时价格",
		zap.String("symbol", symbol),
		zap.String("name", resp.Data.Name),
		zap.Float64("price", price))

	return types.Quote{
		Symbol: symbol,
		Name:   resp.Data.Name,
		Price:  price,
	}, nil
}
