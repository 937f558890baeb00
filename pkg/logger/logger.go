package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"stock-anomaly-sentry/pkg/types"
)

const logFileName = "sentry.log"

// New 根据配置创建日志器：控制台输出 + 按大小切割的JSON文件
func New(cfg types.LogConfig) *zap.Logger {
	return zap.New(zapcore.NewTee(newCores(cfg)...), zap.AddCaller())
}

// parseLevel 无法识别的级别按info处理
func parseLevel(level string) zap.AtomicLevel {
	atomic := zap.NewAtomicLevel()
	if err := atomic.UnmarshalText([]byte(level)); err != nil {
		atomic.SetLevel(zapcore.InfoLevel)
	}
	return atomic
}

func newCores(cfg types.LogConfig) []zapcore.Core {
	level := parseLevel(cfg.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level),
	}

	if cfg.FilePath != "" {
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.FilePath, logFileName),
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(writer), level))
	}
	return cores
}

// Init 创建日志器并替换全局 zap.L()，返回的函数用于退出前刷新缓冲
func Init(cfg types.LogConfig) func() {
	l := New(cfg)
	restore := zap.ReplaceGlobals(l)
	return func() {
		_ = l.Sync()
		restore()
	}
}
