package notifier

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"stock-anomaly-sentry/pkg/types"
)

// DingTalkNotifier 钉钉通知器
type DingTalkNotifier struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	fallback   *ConsoleNotifier
	now        func() time.Time
}

// DingTalkMessage 钉钉消息结构
type DingTalkMessage struct {
	MsgType  string            `json:"msgtype"`
	Markdown *DingTalkMarkdown `json:"markdown,omitempty"`
	At       *DingTalkAt       `json:"at,omitempty"`
}

type DingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type DingTalkAt struct {
	AtAll bool `json:"isAtAll"`
}

// DingTalkResponse 钉钉API响应
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewDingTalkNotifier(webhookURL, secret string) Interface {
	if webhookURL == "" {
		zap.L().Info("🔧 未配置钉钉Webhook URL，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	if secret != "" {
		zap.L().Info("✅ 已配置钉钉通知服务（含加签验证）")
	} else {
		zap.L().Warn("⚠️ 钉钉通知已配置，但未设置secret（建议配置加签验证）")
	}

	return &DingTalkNotifier{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		fallback: NewConsoleNotifier(),
		now:      time.Now,
	}
}

func (dtn *DingTalkNotifier) SendAlert(report *types.DetectionReport) error {
	title := fmt.Sprintf("🚨 股票异动预警 - %s", displayName(report))
	content := dtn.buildMarkdownContent(report)

	if err := dtn.sendDingTalkMessage(title, content); err != nil {
		zap.L().Warn("❌ 钉钉发送失败，降级为控制台输出", zap.Error(err))
		return dtn.fallback.SendAlert(report)
	}

	zap.L().Info("✅ 钉钉通知已发送", zap.String("symbol", report.Result.StockCode))
	return nil
}

func (dtn *DingTalkNotifier) SendBatchAlerts(reports []*types.DetectionReport) error {
	if len(reports) == 0 {
		return nil
	}
	if len(reports) == 1 {
		return dtn.SendAlert(reports[0])
	}

	title := fmt.Sprintf("📊 股票异动批量预警 - %d只股票", len(reports))
	sections := make([]string, 0, len(reports))
	for _, report := range reports {
		sections = append(sections, dtn.buildMarkdownContent(report))
	}

	if err := dtn.sendDingTalkMessage(title, strings.Join(sections, "\n\n---\n\n")); err != nil {
		zap.L().Warn("❌ 钉钉批量发送失败，降级为控制台输出", zap.Error(err))
		return dtn.fallback.SendBatchAlerts(reports)
	}

	zap.L().Info("✅ 钉钉批量通知已发送", zap.Int("count", len(reports)))
	return nil
}

// generateSignature 生成钉钉加签: base64(HmacSHA256(timestamp+"\n"+secret))
func (dtn *DingTalkNotifier) generateSignature(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, dtn.secret)

	h := hmac.New(sha256.New, []byte(dtn.secret))
	h.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return url.QueryEscape(signature)
}

// buildSignedURL 构建带签名的URL
func (dtn *DingTalkNotifier) buildSignedURL() string {
	if dtn.secret == "" {
		return dtn.webhookURL
	}

	timestamp := dtn.now().UnixMilli()
	separator := "&"
	if !strings.Contains(dtn.webhookURL, "?") {
		separator = "?"
	}

	return fmt.Sprintf("%s%stimestamp=%d&sign=%s",
		dtn.webhookURL, separator, timestamp, dtn.generateSignature(timestamp))
}

// buildMarkdownContent 构建单只股票的Markdown内容
func (dtn *DingTalkNotifier) buildMarkdownContent(report *types.DetectionReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 🚨 %s 异动预警\n\n", displayName(report))
	for _, line := range ReportLines(report) {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	fmt.Fprintf(&b, "\n**预警时间**: %s", report.DetectedAt.Format("2006-01-02 15:04:05"))
	return b.String()
}

// sendDingTalkMessage 发送钉钉消息
func (dtn *DingTalkNotifier) sendDingTalkMessage(title, content string) error {
	message := &DingTalkMessage{
		MsgType: "markdown",
		Markdown: &DingTalkMarkdown{
			Title: title,
			Text:  content,
		},
		At: &DingTalkAt{
			AtAll: false,
		},
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	resp, err := dtn.httpClient.Post(dtn.buildSignedURL(), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var dingResp DingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dingResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}

	if dingResp.ErrCode != 0 {
		return fmt.Errorf("钉钉API错误 [%d]: %s", dingResp.ErrCode, dingResp.ErrMsg)
	}

	return nil
}
