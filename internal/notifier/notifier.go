package notifier

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"stock-anomaly-sentry/pkg/types"
)

// Interface 通知接口
type Interface interface {
	SendAlert(report *types.DetectionReport) error
	SendBatchAlerts(reports []*types.DetectionReport) error
}

// New 根据配置选择通知服务（优先级：钉钉 > PushPlus > 控制台）
func New(dingTalk types.DingTalkConfig, pushPlus types.PushPlusConfig) Interface {
	if dingTalk.WebhookURL != "" {
		return NewDingTalkNotifier(dingTalk.WebhookURL, dingTalk.Secret)
	}
	if pushPlus.UserToken != "" {
		return NewPushPlusNotifier(pushPlus.UserToken, pushPlus.To)
	}
	return NewConsoleNotifier()
}

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	// 使用utf8.RuneCountInString计算实际显示字符数，而不是字节数
	runeCount := utf8.RuneCountInString(content)
	padding := totalWidth - runeCount - 4 // 4是边框字符数
	if padding < 0 {
		padding = 0
	}
	return padding
}

// displayName 股票名称 + 代码
func displayName(report *types.DetectionReport) string {
	if report.StockName == "" {
		return report.Result.StockCode
	}
	return fmt.Sprintf("%s(%s)", report.StockName, report.Result.StockCode)
}

// priceLabel 当前价格的描述，实时价格不可用时标明为收盘价
func priceLabel(source types.PriceSource) string {
	if source == types.SourceLastClose {
		return "上一个交易日收盘价格"
	}
	return "当前价格"
}

// ruleText 异动规则描述，如 10天偏离≥100%
func ruleText(w types.WindowResult) string {
	return fmt.Sprintf("%d天偏离≥%.0f%%", w.Length, w.Threshold)
}

// triggeredRules 已触发的规则
func triggeredRules(result types.AnomalyResult) []string {
	var rules []string
	for _, w := range result.Windows {
		if w.Anomaly {
			rules = append(rules, ruleText(w))
		}
	}
	return rules
}

// ReportLines 生成检测结果的文本行，控制台与推送共用
func ReportLines(report *types.DetectionReport) []string {
	r := report.Result
	anomalyText := "否"
	if r.HasAnomaly {
		anomalyText = "是"
	}

	lines := []string{
		fmt.Sprintf("%s: %.2f", priceLabel(report.StockPriceSource), r.StockPrice),
		fmt.Sprintf("是否异动: %s", anomalyText),
	}
	for _, w := range r.Windows {
		lines = append(lines, fmt.Sprintf("%d天偏离: %.2f%%", w.Length, w.Deviation))
	}
	if rules := triggeredRules(r); len(rules) > 0 {
		lines = append(lines, fmt.Sprintf("触发规则: %s", strings.Join(rules, ", ")))
	}
	for _, w := range r.Windows {
		lines = append(lines, fmt.Sprintf("%d天最低价: %.2f (%s) %d天",
			w.Length, w.MinPrice, w.MinDate.Format("2006-01-02"), w.MinOffset))
	}
	for _, w := range r.Windows {
		if w.Critical == nil {
			lines = append(lines, fmt.Sprintf("%d天异动已触发", w.Length))
			continue
		}
		lines = append(lines, fmt.Sprintf("%d天临界价格: %.2f (临界涨幅: %.2f%%)",
			w.Length, w.Critical.Price, w.Critical.Gap))
	}
	for _, w := range r.Windows {
		if w.LookAhead != nil {
			lines = append(lines, fmt.Sprintf("明日%d天临界价格: %.2f (临界涨幅: %.2f%%)",
				w.Length, w.LookAhead.Price, w.LookAhead.Gap))
		}
	}
	return lines
}

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct {
	out io.Writer
}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{out: os.Stdout}
}

// NewWriterNotifier 输出到指定 writer 的控制台通知器
func NewWriterNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: w}
}

// PrintReport 输出完整检测结果
func (cn *ConsoleNotifier) PrintReport(report *types.DetectionReport) {
	fmt.Fprintf(cn.out, "\n股票代码: %s\n", report.Result.StockCode)
	if report.StockName != "" {
		fmt.Fprintf(cn.out, "股票名称: %s\n", report.StockName)
	}
	fmt.Fprintf(cn.out, "对应指数: %s %s\n", report.Result.IndexCode, report.IndexName)
	fmt.Fprintln(cn.out, strings.Repeat("-", 40))
	for _, line := range ReportLines(report) {
		fmt.Fprintf(cn.out, "  %s\n", line)
	}
	fmt.Fprintln(cn.out, strings.Repeat("-", 40))
}

func (cn *ConsoleNotifier) SendAlert(report *types.DetectionReport) error {
	border := "╔" + strings.Repeat("═", 60) + "╗"
	bottomBorder := "╚" + strings.Repeat("═", 60) + "╝"

	fmt.Fprintln(cn.out)
	fmt.Fprintln(cn.out, border)
	title := fmt.Sprintf("🚨 股票异动预警！%s", displayName(report))
	fmt.Fprintf(cn.out, "║ %s%s ║\n", title, strings.Repeat(" ", safePadding(title, 60)))
	fmt.Fprintln(cn.out, "║"+strings.Repeat(" ", 60)+"║")
	for _, line := range ReportLines(report) {
		fmt.Fprintf(cn.out, "║ %s%s ║\n", line, strings.Repeat(" ", safePadding(line, 60)))
	}
	timeStr := fmt.Sprintf("预警时间: %s", report.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(cn.out, "║ %s%s ║\n", timeStr, strings.Repeat(" ", safePadding(timeStr, 60)))
	fmt.Fprintln(cn.out, bottomBorder)
	fmt.Fprintln(cn.out)
	return nil
}

func (cn *ConsoleNotifier) SendBatchAlerts(reports []*types.DetectionReport) error {
	for _, report := range reports {
		if err := cn.SendAlert(report); err != nil {
			return err
		}
	}
	return nil
}
