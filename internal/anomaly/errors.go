package anomaly

import "errors"

var (
	// ErrUnsupportedPrefix 股票代码首位没有对应的基准指数
	ErrUnsupportedPrefix = errors.New("不支持的股票代码前缀")
	// ErrInsufficientData 股票或指数没有可用的历史数据
	ErrInsufficientData = errors.New("无法获取股票或指数数据")
	// ErrEmptyWindow 在空序列上查找窗口最低价
	ErrEmptyWindow = errors.New("窗口内没有价格数据")
	// ErrNoData 在空的指数序列上按日期取价
	ErrNoData = errors.New("没有可用于日期对齐的数据")
)
