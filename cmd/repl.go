package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"stock-anomaly-sentry/internal/analyzer"
	"stock-anomaly-sentry/internal/anomaly"
	"stock-anomaly-sentry/internal/notifier"
	"stock-anomaly-sentry/pkg/types"
)

// detectService 交互模式依赖的检测能力
type detectService interface {
	Detect(ctx context.Context, code string) (*types.DetectionReport, error)
}

var quitWords = map[string]bool{"quit": true, "exit": true, "q": true, "退出": true}

func printBanner(out io.Writer, rules []types.WindowRule) {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, "                   A股股票异动检测系统")
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, "功能说明：")
	for i, rule := range rules {
		fmt.Fprintf(out, "%d. 连续%d个交易日内，涨跌幅偏离值累计达 +%.0f%%\n", i+1, rule.Length, rule.Threshold)
	}
	fmt.Fprintln(out, "偏离值计算公式：单只股票涨跌幅 - 对应指数涨跌幅")
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, "提示：")
	fmt.Fprintln(out, "  - 输入6位股票代码开始检测")
	fmt.Fprintln(out, "  - 输入 'quit', 'exit', 'q' 或 '退出' 退出程序")
	fmt.Fprintln(out, "  - 输入 'help' 查看帮助信息")
}

func printHelp(out io.Writer, rules []types.WindowRule) {
	conditions := make([]string, 0, len(rules))
	fmt.Fprintln(out, "\n帮助信息：")
	fmt.Fprintln(out, "  - 本系统用于检测A股股票异动情况")
	for _, rule := range rules {
		fmt.Fprintf(out, "  - %d天偏离：股票在最近%d个交易日内的涨幅偏离指数的幅度\n", rule.Length, rule.Length)
		conditions = append(conditions, fmt.Sprintf("%d天偏离≥%.0f%%", rule.Length, rule.Threshold))
	}
	fmt.Fprintf(out, "  - 异动触发：%s\n", strings.Join(conditions, " 或 "))
	fmt.Fprintln(out, "  - 支持沪市主板(6开头)、深市主板(0开头)、创业板(3开头)")
}

// runREPL 交互式检测循环，输入结束或ctx取消时返回
func runREPL(ctx context.Context, in io.Reader, out io.Writer, svc detectService, rules []types.WindowRule) error {
	printer := notifier.NewWriterNotifier(out)
	printBanner(out, rules)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "\n>>> 请输入股票代码: ")

		var input string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			input = strings.TrimSpace(line)
		}

		switch {
		case input == "":
			continue
		case quitWords[strings.ToLower(input)]:
			fmt.Fprintln(out, "感谢使用，再见！")
			return nil
		case strings.ToLower(input) == "help":
			printHelp(out, rules)
			continue
		case !analyzer.ValidCode(input):
			fmt.Fprintln(out, "错误: 股票代码应为6位数字，请重新输入")
			continue
		}

		fmt.Fprintf(out, "\n正在检测股票: %s ...\n", input)
		report, err := svc.Detect(ctx, input)
		if err != nil {
			printDetectError(out, input, err)
			continue
		}
		printer.PrintReport(report)
	}
}

func printDetectError(out io.Writer, code string, err error) {
	switch {
	case errors.Is(err, anomaly.ErrUnsupportedPrefix):
		fmt.Fprintf(out, "错误: 暂不支持股票代码 %s，仅支持6、0、3开头的沪深A股\n", code)
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(out, "检测已取消")
	default:
		fmt.Fprintf(out, "检测失败: %v\n", err)
	}
}
