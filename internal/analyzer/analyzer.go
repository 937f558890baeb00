package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"stock-anomaly-sentry/internal/anomaly"
	"stock-anomaly-sentry/internal/fetcher"
	"stock-anomaly-sentry/internal/notifier"
	"stock-anomaly-sentry/pkg/types"
)

// ErrInvalidCode 股票代码不是6位数字
var ErrInvalidCode = errors.New("股票代码必须是6位数字")

// DefaultAlertCooldown 同一只股票两次预警的最小间隔
const DefaultAlertCooldown = 30 * time.Minute

// Service 检测服务：取数、计算、预警
type Service struct {
	history  fetcher.HistoryProvider
	spot     fetcher.SpotProvider
	detector *anomaly.Detector
	notifier notifier.Interface
	lookback int
	cooldown time.Duration

	alertHistory map[string]time.Time // 防止重复预警
	mutex        sync.Mutex
	now          func() time.Time
}

func NewService(history fetcher.HistoryProvider, spot fetcher.SpotProvider, detector *anomaly.Detector,
	notifyService notifier.Interface, lookback int, cooldown time.Duration) *Service {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	return &Service{
		history:      history,
		spot:         spot,
		detector:     detector,
		notifier:     notifyService,
		lookback:     lookback,
		cooldown:     cooldown,
		alertHistory: make(map[string]time.Time),
		now:          time.Now,
	}
}

// ValidCode 6位数字
func ValidCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Detect 检测单只股票，有异动时推送预警
func (s *Service) Detect(ctx context.Context, code string) (*types.DetectionReport, error) {
	report, err := s.detect(ctx, code)
	if err != nil {
		return nil, err
	}

	if report.Result.HasAnomaly && s.reserveAlert(code) {
		if err := s.notifier.SendAlert(report); err != nil {
			zap.L().Error("❌ 发送预警失败", zap.String("symbol", code), zap.Error(err))
			s.releaseAlert(code)
		}
	}
	return report, nil
}

// DetectAll 依次检测多只股票，异动预警合并发送
// 单只股票失败不影响其他股票，所有错误合并返回
func (s *Service) DetectAll(ctx context.Context, codes []string) ([]*types.DetectionReport, error) {
	reports := make([]*types.DetectionReport, 0, len(codes))
	alerts := make([]*types.DetectionReport, 0)
	seen := make(map[string]bool, len(codes))
	var errs []error

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		// 同一批次内重复的代码只检测一次
		if seen[code] {
			continue
		}
		seen[code] = true

		report, err := s.detect(ctx, code)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
			continue
		}
		reports = append(reports, report)

		if report.Result.HasAnomaly && s.reserveAlert(code) {
			alerts = append(alerts, report)
		}
	}

	s.sendBatchAlerts(alerts)
	return reports, errors.Join(errs...)
}

// detect 取数并计算，不发送预警
func (s *Service) detect(ctx context.Context, code string) (*types.DetectionReport, error) {
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	// 先确定基准指数，不支持的代码不发起任何请求
	benchmark, err := anomaly.BenchmarkFor(code)
	if err != nil {
		return nil, err
	}

	var (
		wg                       sync.WaitGroup
		stockSeries, indexSeries types.PriceSeries
		stockErr, indexErr       error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		stockSeries, stockErr = s.history.FetchHistory(ctx, code, types.KindStock, s.lookback)
	}()
	go func() {
		defer wg.Done()
		indexSeries, indexErr = s.history.FetchHistory(ctx, benchmark.Code, types.KindIndex, s.lookback)
	}()
	wg.Wait()

	if stockErr != nil {
		return nil, fmt.Errorf("获取股票历史数据失败: %w", stockErr)
	}
	if indexErr != nil {
		return nil, fmt.Errorf("获取指数历史数据失败: %w", indexErr)
	}
	if len(stockSeries) == 0 || len(indexSeries) == 0 {
		return nil, fmt.Errorf("%w: stock=%d index=%d", anomaly.ErrInsufficientData, len(stockSeries), len(indexSeries))
	}

	stockSpot, err := fetcher.ResolveSpot(ctx, s.spot, code, types.KindStock, stockSeries)
	if err != nil {
		return nil, err
	}
	indexSpot, err := fetcher.ResolveSpot(ctx, s.spot, benchmark.Code, types.KindIndex, indexSeries)
	if err != nil {
		return nil, err
	}

	result, err := s.detector.Detect(code, stockSeries, indexSeries, stockSpot.Quote.Price, indexSpot.Quote.Price)
	if err != nil {
		return nil, err
	}

	indexName := indexSpot.Quote.Name
	if indexName == "" {
		indexName = benchmark.Name
	}

	zap.L().Debug("检测完成",
		zap.String("symbol", code),
		zap.String("index", benchmark.Code),
		zap.Bool("anomaly", result.HasAnomaly))

	return &types.DetectionReport{
		Result:           result,
		StockName:        stockSpot.Quote.Name,
		IndexName:        indexName,
		StockPriceSource: stockSpot.Source,
		IndexPriceSource: indexSpot.Source,
		DetectedAt:       s.now(),
	}, nil
}

// sendBatchAlerts 批量发送预警，预警均已占位，发送失败的撤销占位
func (s *Service) sendBatchAlerts(alerts []*types.DetectionReport) {
	if len(alerts) == 0 {
		return
	}

	if len(alerts) == 1 {
		if err := s.notifier.SendAlert(alerts[0]); err != nil {
			zap.L().Error("❌ 发送预警失败", zap.String("symbol", alerts[0].Result.StockCode), zap.Error(err))
			s.releaseAlert(alerts[0].Result.StockCode)
		}
		return
	}

	if err := s.notifier.SendBatchAlerts(alerts); err != nil {
		zap.L().Error("❌ 批量发送预警失败，降级为单个发送", zap.Error(err))
		for _, alert := range alerts {
			if singleErr := s.notifier.SendAlert(alert); singleErr != nil {
				zap.L().Error("❌ 单个预警发送失败", zap.String("symbol", alert.Result.StockCode), zap.Error(singleErr))
				s.releaseAlert(alert.Result.StockCode)
			}
		}
	}
}

// reserveAlert 检查冷却期并在同一把锁内记录预警时间
// 返回false表示冷却期内已经预警过（或正在预警）
func (s *Service) reserveAlert(symbol string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	if lastAlert, exists := s.alertHistory[symbol]; exists && now.Sub(lastAlert) < s.cooldown {
		return false
	}
	s.alertHistory[symbol] = now

	// 清理已过冷却期的记录
	for sym, alertTime := range s.alertHistory {
		if now.Sub(alertTime) >= s.cooldown {
			delete(s.alertHistory, sym)
		}
	}
	return true
}

// releaseAlert 发送失败时撤销占位，下次检测可以重新预警
func (s *Service) releaseAlert(symbol string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.alertHistory, symbol)
}
