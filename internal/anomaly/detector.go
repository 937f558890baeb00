package anomaly

import (
	"fmt"

	"stock-anomaly-sentry/pkg/types"
)

// DefaultNearGap 临界涨幅低于该值（百分点）时推算明日临界价格
const DefaultNearGap = 20.0

// Policy 异动判定规则
type Policy struct {
	Windows []types.WindowRule
	NearGap float64
}

// DefaultPolicy 连续10个交易日偏离值累计+100%，或连续30个交易日累计+200%
func DefaultPolicy() Policy {
	return Policy{
		Windows: []types.WindowRule{
			{Length: 10, Threshold: 100, LookAhead: 9},
			{Length: 30, Threshold: 200, LookAhead: 29},
		},
		NearGap: DefaultNearGap,
	}
}

// Detector 异动计算引擎，无内部状态，可并发使用
type Detector struct {
	policy Policy
}

func NewDetector(policy Policy) *Detector {
	return &Detector{policy: policy}
}

// Policy 返回当前使用的规则
func (d *Detector) Policy() Policy {
	return d.policy
}

// Detect 计算股票相对基准指数的偏离值及临界价格
// stockSpot/indexSpot 由调用方给出，实时价格不可用时调用方应传入最近收盘价
func (d *Detector) Detect(stockCode string, stock, index types.PriceSeries, stockSpot, indexSpot float64) (types.AnomalyResult, error) {
	benchmark, err := BenchmarkFor(stockCode)
	if err != nil {
		return types.AnomalyResult{}, err
	}

	if len(stock) == 0 || len(index) == 0 {
		return types.AnomalyResult{}, fmt.Errorf("%w: stock=%d index=%d", ErrInsufficientData, len(stock), len(index))
	}

	result := types.AnomalyResult{
		StockCode:  stockCode,
		IndexCode:  benchmark.Code,
		StockPrice: stockSpot,
		IndexPrice: indexSpot,
		Windows:    make([]types.WindowResult, 0, len(d.policy.Windows)),
	}

	for _, rule := range d.policy.Windows {
		w, err := d.evaluate(rule, stock, index, stockSpot, indexSpot)
		if err != nil {
			return types.AnomalyResult{}, fmt.Errorf("计算%d日窗口失败: %w", rule.Length, err)
		}
		if w.Anomaly {
			result.HasAnomaly = true
		}
		result.Windows = append(result.Windows, w)
	}

	return result, nil
}

// windowGrowth 单个窗口的涨幅数据
type windowGrowth struct {
	low         WindowLow
	stockGrowth float64
	indexGrowth float64
}

func measure(length int, stock, index types.PriceSeries, stockSpot, indexSpot float64) (windowGrowth, error) {
	low, err := MinInWindow(stock, length)
	if err != nil {
		return windowGrowth{}, err
	}

	indexAtLow, err := PriceOnOrNear(index, low.Date)
	if err != nil {
		return windowGrowth{}, err
	}

	return windowGrowth{
		low:         low,
		stockGrowth: GrowthRate(stockSpot, low.Price),
		indexGrowth: GrowthRate(indexSpot, indexAtLow),
	}, nil
}

// project 推算使偏离值恰好等于阈值的股价，指数涨幅保持当前值
func project(length int, g windowGrowth, threshold, stockSpot float64) *types.Projection {
	required := g.indexGrowth + threshold
	price := g.low.Price * (1 + required/100)
	return &types.Projection{
		WindowLength: length,
		Price:        price,
		Growth:       GrowthRate(price, g.low.Price),
		Gap:          GrowthRate(price, stockSpot),
	}
}

func (d *Detector) evaluate(rule types.WindowRule, stock, index types.PriceSeries, stockSpot, indexSpot float64) (types.WindowResult, error) {
	g, err := measure(rule.Length, stock, index, stockSpot, indexSpot)
	if err != nil {
		return types.WindowResult{}, err
	}

	deviation := g.stockGrowth - g.indexGrowth
	w := types.WindowResult{
		Length:      rule.Length,
		Threshold:   rule.Threshold,
		Anomaly:     deviation >= rule.Threshold,
		Deviation:   deviation,
		StockGrowth: g.stockGrowth,
		IndexGrowth: g.indexGrowth,
		MinPrice:    g.low.Price,
		MinDate:     g.low.Date,
		MinOffset:   g.low.Offset,
	}
	if w.Anomaly {
		return w, nil
	}

	w.Critical = project(rule.Length, g, rule.Threshold, stockSpot)
	if rule.LookAhead <= 0 || w.Critical.Gap >= d.policy.NearGap {
		return w, nil
	}

	// 接近触发：假设最早的交易日明天移出窗口
	next, err := measure(rule.LookAhead, stock, index, stockSpot, indexSpot)
	if err != nil {
		return types.WindowResult{}, err
	}
	w.LookAhead = project(rule.LookAhead, next, rule.Threshold, stockSpot)

	return w, nil
}
