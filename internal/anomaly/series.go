package anomaly

import (
	"time"

	"stock-anomaly-sentry/pkg/types"
)

// GrowthRate 计算涨幅百分比：(current-start)/start*100
// start为0时返回0，属于退化输入的约定值，并非真实行情
func GrowthRate(current, start float64) float64 {
	if start == 0 {
		return 0
	}
	return (current - start) / start * 100
}

// WindowLow 窗口最低价
type WindowLow struct {
	Price  float64
	Date   time.Time
	Offset int // 从最新交易日起算，最新为1
}

// MinInWindow 查找最近 length 个交易日内的最低收盘价
// 序列不足 length 时使用整个序列；价格相同时取最近的一天
func MinInWindow(series types.PriceSeries, length int) (WindowLow, error) {
	if len(series) == 0 {
		return WindowLow{}, ErrEmptyWindow
	}

	n := length
	if n <= 0 || n > len(series) {
		n = len(series)
	}

	minIdx := 0
	for i := 1; i < n; i++ {
		if series[i].Close < series[minIdx].Close {
			minIdx = i
		}
	}

	return WindowLow{
		Price:  series[minIdx].Close,
		Date:   series[minIdx].TradeDate,
		Offset: minIdx + 1,
	}, nil
}

// PriceOnOrNear 返回指定日期的收盘价，没有该日期时取相差天数最少的一天
// 股票与指数的交易日历可能不一致（停牌、节假日差异）
func PriceOnOrNear(series types.PriceSeries, target time.Time) (float64, error) {
	if len(series) == 0 {
		return 0, ErrNoData
	}

	day := types.TradeDay(target)
	best := -1
	var bestDiff time.Duration
	for i, p := range series {
		d := types.TradeDay(p.TradeDate)
		if d.Equal(day) {
			return p.Close, nil
		}

		diff := d.Sub(day)
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff || (diff == bestDiff && d.Before(types.TradeDay(series[best].TradeDate))) {
			best = i
			bestDiff = diff
		}
	}

	return series[best].Close, nil
}
