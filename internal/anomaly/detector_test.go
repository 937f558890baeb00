package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stock-anomaly-sentry/pkg/types"
)

func detect(t *testing.T, stock, index types.PriceSeries, stockSpot, indexSpot float64) types.AnomalyResult {
	t.Helper()
	result, err := NewDetector(DefaultPolicy()).Detect("600001", stock, index, stockSpot, indexSpot)
	require.NoError(t, err)
	return result
}

func window(t *testing.T, r types.AnomalyResult, length int) types.WindowResult {
	t.Helper()
	w, ok := r.Window(length)
	require.True(t, ok, "window %d missing", length)
	return w
}

func TestDetectTriggers10DayAnomaly(t *testing.T) {
	// 最低价10.00出现在第10个交易日，指数同日3000
	stock := newSeries(21, 20.5, 19, 18, 16, 15, 13, 12, 11, 10)
	index := newSeries(3055, 3050, 3040, 3030, 3025, 3020, 3015, 3010, 3005, 3000)

	result := detect(t, stock, index, 22, 3060)

	assert.Equal(t, "600001", result.StockCode)
	assert.Equal(t, "000001", result.IndexCode)
	assert.Equal(t, 22.0, result.StockPrice)
	assert.Equal(t, 3060.0, result.IndexPrice)
	assert.True(t, result.HasAnomaly)

	w10 := window(t, result, 10)
	assert.Equal(t, 10.0, w10.MinPrice)
	assert.Equal(t, 10, w10.MinOffset)
	assert.Equal(t, baseDay.AddDate(0, 0, -9), w10.MinDate)
	assert.InDelta(t, 120, w10.StockGrowth, 1e-9)
	assert.InDelta(t, 2, w10.IndexGrowth, 1e-9)
	assert.InDelta(t, 118, w10.Deviation, 1e-9)
	assert.True(t, w10.Anomaly)
	assert.Nil(t, w10.Critical)
	assert.Nil(t, w10.LookAhead)

	w30 := window(t, result, 30)
	assert.False(t, w30.Anomaly)
	require.NotNil(t, w30.Critical)
	assert.InDelta(t, 30.2, w30.Critical.Price, 1e-9)
	assert.InDelta(t, 202, w30.Critical.Growth, 1e-9)
	assert.InDelta(t, (30.2-22)/22*100, w30.Critical.Gap, 1e-9)
	assert.Nil(t, w30.LookAhead)
}

func TestDetectBelowThresholdProjectsCriticalPrice(t *testing.T) {
	stock := newSeries(14, 13, 12.5, 12, 11.5, 11, 10.8, 10.5, 10.2, 10)
	index := flatSeries(10, 3000)

	result := detect(t, stock, index, 15, 3000)
	assert.False(t, result.HasAnomaly)

	w10 := window(t, result, 10)
	assert.InDelta(t, 50, w10.StockGrowth, 1e-9)
	assert.InDelta(t, 0, w10.IndexGrowth, 1e-9)
	assert.InDelta(t, 50, w10.Deviation, 1e-9)
	assert.False(t, w10.Anomaly)
	require.NotNil(t, w10.Critical)
	assert.Equal(t, 10, w10.Critical.WindowLength)
	assert.InDelta(t, 20, w10.Critical.Price, 1e-9)
	assert.InDelta(t, 100, w10.Critical.Growth, 1e-9)
	assert.InDelta(t, 33.333333, w10.Critical.Gap, 1e-6)
	assert.Nil(t, w10.LookAhead)
}

func TestDetectThresholdIsInclusive(t *testing.T) {
	stock := newSeries(18, 16, 14, 12, 10)
	index := flatSeries(5, 3000)

	result := detect(t, stock, index, 20, 3000)

	w10 := window(t, result, 10)
	assert.Equal(t, 100.0, w10.Deviation)
	assert.True(t, w10.Anomaly)
	assert.True(t, result.HasAnomaly)
	assert.Nil(t, w10.Critical)
}

func TestDetectLookAheadWhenNearTrigger(t *testing.T) {
	// 10日窗口最低价在最早一天，明天移出窗口后9日最低价为12
	stock := newSeries(18, 17, 16, 15, 14.5, 14, 13, 12.5, 12, 10)
	index := flatSeries(10, 3000)

	result := detect(t, stock, index, 18.5, 3000)

	w10 := window(t, result, 10)
	assert.False(t, w10.Anomaly)
	require.NotNil(t, w10.Critical)
	assert.InDelta(t, 20, w10.Critical.Price, 1e-9)
	assert.Less(t, w10.Critical.Gap, DefaultNearGap)

	require.NotNil(t, w10.LookAhead)
	assert.Equal(t, 9, w10.LookAhead.WindowLength)
	assert.InDelta(t, 24, w10.LookAhead.Price, 1e-9)
	assert.InDelta(t, (24-18.5)/18.5*100, w10.LookAhead.Gap, 1e-9)

	w30 := window(t, result, 30)
	require.NotNil(t, w30.Critical)
	assert.InDelta(t, 30, w30.Critical.Price, 1e-9)
	assert.Nil(t, w30.LookAhead)
}

func TestDetectNearGapIsConfigurable(t *testing.T) {
	stock := newSeries(14, 13, 12.5, 12, 11.5, 11, 10.8, 10.5, 10.2, 10)
	index := flatSeries(10, 3000)

	policy := DefaultPolicy()
	policy.NearGap = 50
	result, err := NewDetector(policy).Detect("600001", stock, index, 15, 3000)
	require.NoError(t, err)

	w10 := window(t, result, 10)
	require.NotNil(t, w10.LookAhead)
	assert.Equal(t, 9, w10.LookAhead.WindowLength)
	assert.InDelta(t, 20.4, w10.LookAhead.Price, 1e-9)
}

func TestDetectAlignsIndexByNearestDate(t *testing.T) {
	stock := newSeries(15, 14, 13, 12, 10)
	// 指数在股票最低价当天（第5个交易日）休市，最接近的是前一天
	index := types.PriceSeries{
		{TradeDate: baseDay, Close: 3090},
		{TradeDate: baseDay.AddDate(0, 0, -1), Close: 3060},
		{TradeDate: baseDay.AddDate(0, 0, -2), Close: 3050},
		{TradeDate: baseDay.AddDate(0, 0, -3), Close: 3030},
		{TradeDate: baseDay.AddDate(0, 0, -5), Close: 3000},
	}

	result := detect(t, stock, index, 15, 3090)

	w10 := window(t, result, 10)
	assert.InDelta(t, 3, w10.IndexGrowth, 1e-9)
	assert.InDelta(t, 47, w10.Deviation, 1e-9)
}

func TestDetectIsIdempotent(t *testing.T) {
	stock := newSeries(18, 17, 16, 15, 14.5, 14, 13, 12.5, 12, 10, 9.5, 9.8, 11)
	index := newSeries(3100, 3090, 3085, 3070, 3060, 3040, 3050, 3030, 3020, 3010, 3000, 2990, 2980)

	d := NewDetector(DefaultPolicy())
	first, err := d.Detect("000001", stock, index, 18.2, 3105)
	require.NoError(t, err)
	second, err := d.Detect("000001", stock, index, 18.2, 3105)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "399107", first.IndexCode)
}

func TestDetectDeviationMonotonicInStockPrice(t *testing.T) {
	stock := newSeries(18, 17, 16, 15, 14.5, 14, 13, 12.5, 12, 10, 9.5, 9.8, 11)
	index := newSeries(3100, 3090, 3085, 3070, 3060, 3040, 3050, 3030, 3020, 3010, 3000, 2990, 2980)

	d := NewDetector(DefaultPolicy())
	var prev types.AnomalyResult
	for i, spot := 0, 5.0; spot <= 40; i, spot = i+1, spot+0.25 {
		result, err := d.Detect("300001", stock, index, spot, 3105)
		require.NoError(t, err)

		if i > 0 {
			for j := range result.Windows {
				assert.GreaterOrEqual(t, result.Windows[j].Deviation, prev.Windows[j].Deviation,
					"window %d spot %.2f", result.Windows[j].Length, spot)
			}
		}
		prev = result
	}
}

func TestDetectShortHistory(t *testing.T) {
	stock := newSeries(12, 11, 10.5, 10, 10.2)
	index := flatSeries(5, 3000)

	result := detect(t, stock, index, 12, 3000)

	for _, length := range []int{10, 30} {
		w := window(t, result, length)
		assert.Equal(t, 10.0, w.MinPrice)
		assert.Equal(t, 4, w.MinOffset)
	}
}

func TestDetectErrors(t *testing.T) {
	d := NewDetector(DefaultPolicy())
	stock := newSeries(10, 11)
	index := newSeries(3000, 3001)

	_, err := d.Detect("830001", stock, index, 10, 3000)
	assert.ErrorIs(t, err, ErrUnsupportedPrefix)

	_, err = d.Detect("600001", nil, index, 10, 3000)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = d.Detect("600001", stock, types.PriceSeries{}, 10, 3000)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
