package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"stock-anomaly-sentry/pkg/types"
)

// Manager 日线数据归档，使用MySQL存储
type Manager struct {
	db *gorm.DB
}

// DailyBar 日线收盘价模型
type DailyBar struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_symbol_kind_date,priority:1" json:"symbol"`
	Kind      string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_symbol_kind_date,priority:2" json:"kind"`
	TradeDate time.Time `gorm:"type:date;not null;uniqueIndex:uk_symbol_kind_date,priority:3" json:"trade_date"`
	Close     float64   `gorm:"type:decimal(20,4);not null" json:"close"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewManager 连接MySQL并迁移表结构
func NewManager(config types.MySQLConfig) (*Manager, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)

	manager, err := Open(mysql.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	// 配置连接池
	sqlDB, err := manager.db.DB()
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("获取数据库实例失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := manager.setup(); err != nil {
		return nil, err
	}

	zap.L().Info("✅ MySQL数据库连接成功",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.Database))

	return manager, nil
}

// Open 使用给定的方言打开数据库，不做迁移
func Open(dialector gorm.Dialector) (*Manager, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return &Manager{db: db}, nil
}

// setup 迁移表结构，失败时关闭连接
func (m *Manager) setup() error {
	if err := m.AutoMigrate(); err != nil {
		_ = m.Close()
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// AutoMigrate 自动迁移表结构
func (m *Manager) AutoMigrate() error {
	return m.db.AutoMigrate(&DailyBar{})
}

// SaveBars 保存日线数据，同一交易日已存在时更新收盘价
func (m *Manager) SaveBars(ctx context.Context, symbol string, kind types.SeriesKind, series types.PriceSeries) error {
	if len(series) == 0 {
		return nil
	}

	bars := make([]DailyBar, 0, len(series))
	for _, p := range series {
		bars = append(bars, DailyBar{
			Symbol:    symbol,
			Kind:      string(kind),
			TradeDate: types.TradeDay(p.TradeDate),
			Close:     p.Close,
		})
	}

	err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "kind"}, {Name: "trade_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"close", "updated_at"}),
		}).
		CreateInBatches(bars, 100).Error
	if err != nil {
		return fmt.Errorf("保存%s日线数据失败: %w", symbol, err)
	}

	zap.L().Debug("✅ 日线数据归档完成",
		zap.String("symbol", symbol),
		zap.Int("count", len(bars)))
	return nil
}

// GetBars 获取最近 limit 个交易日的数据，从新到旧排列
func (m *Manager) GetBars(ctx context.Context, symbol string, kind types.SeriesKind, limit int) (types.PriceSeries, error) {
	var bars []DailyBar
	err := m.db.WithContext(ctx).
		Where("symbol = ? AND kind = ?", symbol, string(kind)).
		Order("trade_date DESC").
		Limit(limit).
		Find(&bars).Error
	if err != nil {
		return nil, err
	}

	series := make(types.PriceSeries, 0, len(bars))
	for _, bar := range bars {
		series = append(series, types.PricePoint{
			TradeDate: types.TradeDay(bar.TradeDate),
			Close:     bar.Close,
		})
	}
	return series, nil
}

// FetchHistory 以归档数据作为历史数据来源
func (m *Manager) FetchHistory(ctx context.Context, symbol string, kind types.SeriesKind, lookback int) (types.PriceSeries, error) {
	if lookback <= 0 {
		lookback = 40
	}
	series, err := m.GetBars(ctx, symbol, kind, lookback)
	if err != nil {
		return nil, fmt.Errorf("读取%s归档数据失败: %w", symbol, err)
	}
	return series, nil
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
