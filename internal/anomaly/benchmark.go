package anomaly

import (
	"fmt"

	"stock-anomaly-sentry/pkg/types"
)

// 股票代码首位对应的基准指数
var benchmarks = map[byte]types.Index{
	'6': {Code: "000001", Name: "上证指数", Exchange: types.ExchangeSH},
	'3': {Code: "399102", Name: "创业板综", Exchange: types.ExchangeSZ},
	'0': {Code: "399107", Name: "深证A指", Exchange: types.ExchangeSZ},
}

// BenchmarkFor 返回股票对应的基准指数，只看代码首位
func BenchmarkFor(stockCode string) (types.Index, error) {
	if stockCode == "" {
		return types.Index{}, fmt.Errorf("%w: 空代码", ErrUnsupportedPrefix)
	}
	idx, ok := benchmarks[stockCode[0]]
	if !ok {
		return types.Index{}, fmt.Errorf("%w: %c", ErrUnsupportedPrefix, stockCode[0])
	}
	return idx, nil
}
