package types

import "time"

// Config 主配置结构
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	DingTalk DingTalkConfig `mapstructure:"dingtalk"`
	PushPlus PushPlusConfig `mapstructure:"pushplus"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Network  NetworkConfig  `mapstructure:"network"`
	Database DatabaseConfig `mapstructure:"database"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出目录，为空时只输出到控制台
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// RedisConfig Redis配置
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DingTalkConfig 钉钉配置
type DingTalkConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Secret     string `mapstructure:"secret"`
}

// PushPlusConfig PushPlus配置
type PushPlusConfig struct {
	UserToken string `mapstructure:"user_token"`
	To        string `mapstructure:"to"` // 好友令牌，多人用逗号分隔
}

// WindowRule 统计窗口规则
type WindowRule struct {
	Length    int     `mapstructure:"length"`     // 窗口交易日数
	Threshold float64 `mapstructure:"threshold"`  // 偏离值阈值（百分点）
	LookAhead int     `mapstructure:"look_ahead"` // 明日推算使用的窗口长度，0表示不推算
}

// AnomalyConfig 异动规则配置
type AnomalyConfig struct {
	Windows       []WindowRule  `mapstructure:"windows"`
	NearGap       float64       `mapstructure:"near_gap"`       // 临界涨幅小于该值时推算明日临界价格
	AlertCooldown time.Duration `mapstructure:"alert_cooldown"` // 同一股票两次推送的最短间隔
}

// FetchConfig 数据获取配置
type FetchConfig struct {
	Source         string        `mapstructure:"source"`           // 历史数据来源: eastmoney / mysql
	Lookback       int           `mapstructure:"lookback"`         // 历史交易日数
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`        // 历史数据缓存时间
	HistoryURL     string        `mapstructure:"history_url"`      // 日K线接口地址
	SpotURL        string        `mapstructure:"spot_url"`         // 实时行情接口地址
	RequestsPerSec int           `mapstructure:"requests_per_sec"` // 每秒请求上限
	MaxRetryTime   time.Duration `mapstructure:"max_retry_time"`   // 单次请求重试总时长
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig MySQL配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// Enabled 是否配置了MySQL
func (c MySQLConfig) Enabled() bool {
	return c.Host != ""
}
