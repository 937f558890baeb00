package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"stock-anomaly-sentry/pkg/types"
)

// EnvPrefix 环境变量前缀，如 SENTRY_DINGTALK_WEBHOOK_URL
const EnvPrefix = "SENTRY"

// Load 加载配置，file 为空时按默认路径查找
func Load(file string) (*types.Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// 设置默认值
	setDefaults(v)

	// 读取环境变量
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else if err := readDefaultFiles(v); err != nil {
		return nil, err
	}

	var config types.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// readDefaultFiles 优先读取本地配置文件，其次默认配置文件，都不存在时只用默认值
func readDefaultFiles(v *viper.Viper) error {
	v.SetConfigName("config.local")
	if err := v.ReadInConfig(); err == nil {
		return nil
	}

	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return err
		}
	}
	return nil
}

// Validate 检查异动规则配置
func Validate(cfg *types.Config) error {
	if len(cfg.Anomaly.Windows) == 0 {
		return errors.New("anomaly.windows 不能为空")
	}
	for _, w := range cfg.Anomaly.Windows {
		if w.Length <= 0 {
			return errors.New("anomaly.windows.length 必须为正数")
		}
		if w.LookAhead < 0 || w.LookAhead >= w.Length {
			return errors.New("anomaly.windows.look_ahead 必须小于窗口长度")
		}
	}
	if cfg.Fetch.Source != "eastmoney" && cfg.Fetch.Source != "mysql" {
		return errors.New("fetch.source 仅支持 eastmoney 或 mysql")
	}
	if cfg.Fetch.Source == "mysql" && !cfg.Database.MySQL.Enabled() {
		return errors.New("fetch.source 为 mysql 时必须配置 database.mysql.host")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "logs")
	v.SetDefault("log.max_size", 200)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("dingtalk.webhook_url", "")
	v.SetDefault("dingtalk.secret", "")
	v.SetDefault("pushplus.user_token", "")
	v.SetDefault("pushplus.to", "")
	v.SetDefault("anomaly.windows", []map[string]interface{}{
		{"length": 10, "threshold": 100.0, "look_ahead": 9},
		{"length": 30, "threshold": 200.0, "look_ahead": 29},
	})
	v.SetDefault("anomaly.near_gap", 20.0)
	v.SetDefault("anomaly.alert_cooldown", 30*time.Minute)
	v.SetDefault("fetch.source", "eastmoney")
	v.SetDefault("fetch.lookback", 40)
	v.SetDefault("fetch.cache_ttl", 10*time.Minute)
	v.SetDefault("fetch.history_url", "https://push2his.eastmoney.com/api/qt/stock/kline/get")
	v.SetDefault("fetch.spot_url", "https://push2.eastmoney.com/api/qt/stock/get")
	v.SetDefault("fetch.requests_per_sec", 5)
	v.SetDefault("fetch.max_retry_time", 20*time.Second)
	v.SetDefault("network.proxy", "")
	v.SetDefault("network.timeout", 30*time.Second)
	v.SetDefault("database.mysql.host", "")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "")
	v.SetDefault("database.mysql.max_idle_conns", 5)
	v.SetDefault("database.mysql.max_open_conns", 10)
}
