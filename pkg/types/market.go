package types

import "time"

// SeriesKind 行情序列类型
type SeriesKind string

const (
	KindStock SeriesKind = "stock"
	KindIndex SeriesKind = "index"
)

// Exchange 交易所
type Exchange string

const (
	ExchangeSH Exchange = "SH" // 上海证券交易所
	ExchangeSZ Exchange = "SZ" // 深圳证券交易所
)

// PricePoint 单个交易日的收盘价
type PricePoint struct {
	TradeDate time.Time `json:"trade_date"`
	Close     float64   `json:"close"`
}

// PriceSeries 收盘价序列，按交易日从新到旧排列，日期不重复
type PriceSeries []PricePoint

// Latest 返回最新一个交易日的数据点
func (s PriceSeries) Latest() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[0], true
}

// Index 基准指数
type Index struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Exchange Exchange `json:"exchange"`
}

// Quote 实时行情快照
type Quote struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

// ExchangeOfStock 根据股票代码首位判断上市交易所
func ExchangeOfStock(code string) Exchange {
	if len(code) > 0 && code[0] == '6' {
		return ExchangeSH
	}
	return ExchangeSZ
}

// TradeDay 把时间截断为当天零点（UTC），用于交易日比较
func TradeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
