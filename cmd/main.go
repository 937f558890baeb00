package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"stock-anomaly-sentry/internal/notifier"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "sentry",
	Short:        "A股股票异动检测",
	Long:         `检测沪深A股相对基准指数的涨跌幅偏离值，给出异动判断和临界价格。不带参数运行时进入交互模式。`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runInteractive,
}

var detectCmd = &cobra.Command{
	Use:   "detect [code]...",
	Short: "检测一只或多只股票",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径（默认查找 configs/config.local.yaml 和 configs/config.yaml）")
	rootCmd.AddCommand(detectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInteractive(cmd *cobra.Command, args []string) error {
	app, err := NewApp(configFile)
	if err != nil {
		return err
	}
	defer app.Stop()

	err = runREPL(app.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), app.service, app.detector.Policy().Windows)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runDetect(cmd *cobra.Command, args []string) error {
	app, err := NewApp(configFile)
	if err != nil {
		return err
	}
	defer app.Stop()

	out := cmd.OutOrStdout()
	printer := notifier.NewWriterNotifier(out)

	reports, err := app.service.DetectAll(app.Context(), args)
	for _, report := range reports {
		printer.PrintReport(report)
	}
	if err != nil {
		fmt.Fprintf(out, "\n部分股票检测失败:\n%v\n", err)
		return err
	}
	return nil
}
