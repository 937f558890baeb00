package types

import "time"

// Projection 临界价格推算
// 当窗口尚未触发异动时，给出使偏离值恰好达到阈值的股价
type Projection struct {
	WindowLength int     `json:"window_length"` // 推算所用的窗口长度
	Price        float64 `json:"price"`         // 临界价格
	Growth       float64 `json:"growth"`        // 临界价格相对窗口最低价的涨幅
	Gap          float64 `json:"gap"`           // 距离临界价格还需上涨的百分比
}

// WindowResult 单个统计窗口的计算结果
type WindowResult struct {
	Length      int       `json:"length"`
	Threshold   float64   `json:"threshold"`
	Anomaly     bool      `json:"anomaly"`
	Deviation   float64   `json:"deviation"`
	StockGrowth float64   `json:"stock_growth"`
	IndexGrowth float64   `json:"index_growth"`
	MinPrice    float64   `json:"min_price"`
	MinDate     time.Time `json:"min_date"`
	MinOffset   int       `json:"min_offset"` // 最低价距今的交易日数，最新交易日为1

	// 已触发异动时两者均为nil
	Critical  *Projection `json:"critical,omitempty"`
	LookAhead *Projection `json:"look_ahead,omitempty"` // 明日窗口滚动后的临界价格，仅在接近触发时给出
}

// AnomalyResult 异动检测结果
type AnomalyResult struct {
	StockCode  string         `json:"stock_code"`
	IndexCode  string         `json:"index_code"`
	StockPrice float64        `json:"stock_price"`
	IndexPrice float64        `json:"index_price"`
	HasAnomaly bool           `json:"has_anomaly"`
	Windows    []WindowResult `json:"windows"`
}

// Window 按窗口长度查找结果
func (r AnomalyResult) Window(length int) (WindowResult, bool) {
	for _, w := range r.Windows {
		if w.Length == length {
			return w, true
		}
	}
	return WindowResult{}, false
}

// PriceSource 当前价格来源
type PriceSource string

const (
	SourceLive      PriceSource = "live"       // 实时行情
	SourceLastClose PriceSource = "last_close" // 实时行情不可用，使用最近收盘价
)

// DetectionReport 一次检测的完整输出（预警数据）
type DetectionReport struct {
	Result           AnomalyResult `json:"result"`
	StockName        string        `json:"stock_name"`
	IndexName        string        `json:"index_name"`
	StockPriceSource PriceSource   `json:"stock_price_source"`
	IndexPriceSource PriceSource   `json:"index_price_source"`
	DetectedAt       time.Time     `json:"detected_at"`
}
