package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"stock-anomaly-sentry/pkg/types"
)

const pushPlusURL = "http://www.pushplus.plus/send"

// PushPlusNotifier PushPlus通知器
type PushPlusNotifier struct {
	userToken  string
	to         string // 好友令牌，多人用逗号分隔
	apiURL     string
	httpClient *http.Client
	fallback   *ConsoleNotifier
}

type PushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
	To       string `json:"to,omitempty"` // 好友令牌，给朋友发送通知
}

type PushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

func NewPushPlusNotifier(userToken, to string) Interface {
	// 如果没有配置user token，返回控制台通知器
	if userToken == "" {
		zap.L().Info("🔧 未配置PushPlus User Token，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	zap.L().Info("✅ 已配置PushPlus通知服务", zap.Bool("friends", to != ""))

	return &PushPlusNotifier{
		userToken: userToken,
		to:        to,
		apiURL:    pushPlusURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		fallback: NewConsoleNotifier(),
	}
}

func (ppn *PushPlusNotifier) SendAlert(report *types.DetectionReport) error {
	title := fmt.Sprintf("🚨 股票异动预警 - %s", displayName(report))
	content := ppn.buildHTMLContent(report)

	if err := ppn.sendPushPlusMessage(title, content); err != nil {
		zap.L().Warn("❌ PushPlus发送失败，降级为控制台输出", zap.Error(err))
		return ppn.fallback.SendAlert(report)
	}

	zap.L().Info("✅ PushPlus通知已发送", zap.String("symbol", report.Result.StockCode))
	return nil
}

func (ppn *PushPlusNotifier) SendBatchAlerts(reports []*types.DetectionReport) error {
	if len(reports) == 0 {
		return nil
	}
	if len(reports) == 1 {
		return ppn.SendAlert(reports[0])
	}

	title := fmt.Sprintf("📊 股票异动批量预警 - %d只股票", len(reports))
	var content strings.Builder
	for _, report := range reports {
		content.WriteString(ppn.buildHTMLContent(report))
	}

	if err := ppn.sendPushPlusMessage(title, content.String()); err != nil {
		zap.L().Warn("❌ PushPlus批量发送失败，降级为控制台输出", zap.Error(err))
		return ppn.fallback.SendBatchAlerts(reports)
	}

	zap.L().Info("✅ PushPlus批量通知已发送", zap.Int("count", len(reports)))
	return nil
}

func (ppn *PushPlusNotifier) buildHTMLContent(report *types.DetectionReport) string {
	var rows strings.Builder
	for _, line := range ReportLines(report) {
		rows.WriteString(fmt.Sprintf("        <p>%s</p>\n", html.EscapeString(line)))
	}

	return fmt.Sprintf(`
<div style="border: 2px solid #FF4444; border-radius: 10px; padding: 20px; margin: 10px; background-color: #f9f9f9;">
    <h2 style="color: #FF4444; text-align: center; margin-top: 0;">🚨 %s 异动预警</h2>
    <div style="background-color: white; padding: 15px; border-radius: 8px; margin: 10px 0;">
%s        <p><strong>预警时间:</strong> <span style="color: #666;">%s</span></p>
    </div>
</div>
`,
		html.EscapeString(displayName(report)),
		rows.String(),
		report.DetectedAt.Format("2006-01-02 15:04:05"))
}

func (ppn *PushPlusNotifier) sendPushPlusMessage(title, content string) error {
	reqData := PushPlusRequest{
		Token:    ppn.userToken,
		Title:    title,
		Content:  content,
		Template: "html",
		To:       ppn.to,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("序列化请求数据失败: %w", err)
	}

	resp, err := ppn.httpClient.Post(ppn.apiURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var pushResp PushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}

	if pushResp.Code != 200 {
		return fmt.Errorf("PushPlus API错误: %s", pushResp.Msg)
	}

	return nil
}
