package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"stock-anomaly-sentry/pkg/types"
)

// EastmoneyClient 东方财富行情接口，同时提供日K线和实时价格
type EastmoneyClient struct {
	client     *Client
	historyURL string
	spotURL    string
	now        func() time.Time
}

// eastmoneyKlineResponse 日K线接口响应
type eastmoneyKlineResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Market int      `json:"market"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// NewEastmoneyClient 创建东方财富行情客户端
func NewEastmoneyClient(client *Client, fetchConfig types.FetchConfig) *EastmoneyClient {
	return &EastmoneyClient{
		client:     client,
		historyURL: fetchConfig.HistoryURL,
		spotURL:    fetchConfig.SpotURL,
		now:        time.Now,
	}
}

// secID 东方财富证券ID：沪市为1.代码，深市为0.代码
func secID(symbol string, kind types.SeriesKind) string {
	exchange := types.ExchangeOfStock(symbol)
	if kind == types.KindIndex {
		// 指数代码中 000xxx 为上证系列，399xxx 为深证系列
		exchange = types.ExchangeSZ
		if strings.HasPrefix(symbol, "000") {
			exchange = types.ExchangeSH
		}
	}
	if exchange == types.ExchangeSH {
		return "1." + symbol
	}
	return "0." + symbol
}

// FetchHistory 获取最近 lookback 个交易日的不复权收盘价
func (e *EastmoneyClient) FetchHistory(ctx context.Context, symbol string, kind types.SeriesKind, lookback int) (types.PriceSeries, error) {
	if lookback <= 0 {
		lookback = 40
	}

	// 按自然日的两倍回溯，覆盖节假日
	begin := e.now().AddDate(0, 0, -lookback*2)
	query := url.Values{}
	query.Set("secid", secID(symbol, kind))
	query.Set("fields1", "f1,f2,f3")
	query.Set("fields2", "f51,f52,f53")
	query.Set("klt", "101")
	query.Set("fqt", "0")
	query.Set("beg", begin.Format("20060102"))
	query.Set("end", "20500101")
	requestURL := e.historyURL + "?" + query.Encode()

	zap.L().Debug("📊 获取历史日线数据",
		zap.String("symbol", symbol),
		zap.String("kind", string(kind)),
		zap.Int("lookback", lookback))

	var resp eastmoneyKlineResponse
	if err := e.client.GetJSON(ctx, requestURL, &resp); err != nil {
		return nil, fmt.Errorf("获取%s日线数据失败: %w", symbol, err)
	}

	if resp.Data == nil {
		zap.L().Warn("⚠️ 行情接口未返回数据", zap.String("symbol", symbol), zap.Int("rc", resp.RC))
		return types.PriceSeries{}, nil
	}

	series, err := parseKlines(resp.Data.Klines)
	if err != nil {
		return nil, fmt.Errorf("解析%s日线数据失败: %w", symbol, err)
	}
	if len(series) > lookback {
		series = series[:lookback]
	}

	zap.L().Debug("✅ 历史日线数据获取完成",
		zap.String("symbol", symbol),
		zap.Int("received", len(series)))

	return series, nil
}

// parseKlines 解析 "日期,开盘,收盘" 格式的K线，返回从新到旧且日期去重的序列
func parseKlines(klines []string) (types.PriceSeries, error) {
	byDate := make(map[time.Time]float64, len(klines))
	for _, line := range klines {
		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			return nil, fmt.Errorf("K线数据格式不正确: %q", line)
		}

		date, err := time.ParseInLocation("2006-01-02", fields[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("解析日期失败: %w", err)
		}
		closePrice, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("解析收盘价失败: %w", err)
		}
		if closePrice <= 0 {
			continue
		}
		byDate[date] = closePrice
	}

	series := make(types.PriceSeries, 0, len(byDate))
	for date, closePrice := range byDate {
		series = append(series, types.PricePoint{TradeDate: date, Close: closePrice})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].TradeDate.After(series[j].TradeDate)
	})
	return series, nil
}
