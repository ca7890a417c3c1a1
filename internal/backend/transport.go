package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Doer 接口，支持 http.Client 和 RetryingClient
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// RetryPolicy 重试参数
type RetryPolicy struct {
	// MaxRetries 最大重试次数，0 表示不重试
	MaxRetries int
	// InitialDelay 第一次重试前的等待
	InitialDelay time.Duration
	// MaxDelay 单次等待的上限
	MaxDelay time.Duration
	// BackoffMultiplier 退避倍数
	BackoffMultiplier float64
	// RetryableStatusCodes 需要重试的 HTTP 状态码
	RetryableStatusCodes []int
}

// DefaultRetryPolicy 加载模型时使用的默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableStatusCodes: []int{
			http.StatusRequestTimeout,     // 408
			http.StatusTooManyRequests,    // 429
			http.StatusBadGateway,         // 502
			http.StatusServiceUnavailable, // 503
			http.StatusGatewayTimeout,     // 504
		},
	}
}

// delay 第 attempt 次重试前的等待：initial * multiplier^(attempt-1)，不超过 MaxDelay
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

func (p RetryPolicy) retryStatus(code int) bool {
	for _, c := range p.RetryableStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// RetryingClient 带指数退避的 HTTP 客户端
type RetryingClient struct {
	client Doer
	policy RetryPolicy
}

// NewRetryingClient 包装一个 Doer
func NewRetryingClient(client Doer, policy RetryPolicy) *RetryingClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RetryingClient{client: client, policy: policy}
}

// Do 发送请求，网络错误和可重试状态码会按策略重试
func (c *RetryingClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("读取请求体失败: %w", err)
		}
		body = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, c.policy.delay(attempt)); err != nil {
				return nil, err
			}
		}

		attemptReq := req.Clone(ctx)
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
			attemptReq.ContentLength = int64(len(body))
		}

		resp, err := c.client.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if !c.policy.retryStatus(resp.StatusCode) {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("after %d retries: %w", c.policy.MaxRetries, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
