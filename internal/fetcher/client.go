package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"stock-anomaly-sentry/pkg/types"
)

// Client 带限速和重试的HTTP客户端
type Client struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetryTime time.Duration
}

// NewClient 根据网络配置创建客户端，配置了代理时走代理
func NewClient(networkConfig types.NetworkConfig, fetchConfig types.FetchConfig) *Client {
	timeout := networkConfig.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if networkConfig.Proxy != "" {
		proxyURL, err := url.Parse(networkConfig.Proxy)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", networkConfig.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	rps := fetchConfig.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	maxRetry := fetchConfig.MaxRetryTime
	if maxRetry <= 0 {
		maxRetry = 20 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter:      rate.NewLimiter(rate.Limit(rps), rps),
		maxRetryTime: maxRetry,
	}
}

// GetJSON 发送GET请求并把响应解析到 v，网络错误和5xx会按指数退避重试
func (c *Client) GetJSON(ctx context.Context, requestURL string, v interface{}) error {
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("创建HTTP请求失败: %w", err))
		}
		req.Header.Set("User-Agent", "Stock-Anomaly-Sentry/1.0")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			zap.L().Debug("🔄 请求失败，准备重试", zap.Int("attempt", attempt), zap.Error(err))
			return fmt.Errorf("HTTP请求失败: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{StatusCode: resp.StatusCode}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				zap.L().Debug("🔄 服务端错误，准备重试", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("读取响应体失败: %w", err)
		}
		if err := json.Unmarshal(body, v); err != nil {
			return backoff.Permanent(fmt.Errorf("解析JSON失败: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = c.maxRetryTime

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
