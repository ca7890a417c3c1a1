package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	// 服务端可以返回 webp
	_ "golang.org/x/image/webp"
)

// APIError 生成服务返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("生成服务请求失败 (状态码: %d): %s", e.StatusCode, e.Message)
}

// HTTPConfig 生成服务的连接参数
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Retry   RetryPolicy
	// Client 为空时使用带超时的 http.Client
	Client Doer
}

// HTTPBackend 通过 HTTP 调用生成服务
type HTTPBackend struct {
	host   string
	client Doer
	// loadClient 只用于加载模型，生成请求不重试
	loadClient Doer
}

// NewHTTPBackend 创建 HTTP 后端
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.URL == "" {
		return nil, errors.New("missing backend url")
	}
	host := strings.TrimRight(cfg.URL, "/")

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPBackend{
		host:       host,
		client:     client,
		loadClient: NewRetryingClient(client, cfg.Retry),
	}, nil
}

type loadRequest struct {
	Device   string `json:"device"`
	TaskType string `json:"task_type"`
}

type loadResponse struct {
	ModelID string `json:"model_id"`
}

type text2ImgRequest struct {
	ModelID string `json:"model_id,omitempty"`
	Text2ImgArgs
}

type text2ImgResponse struct {
	Images []string `json:"images"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Initialize 请求服务端加载模型
func (b *HTTPBackend) Initialize(ctx context.Context, device, taskType string) (Handle, error) {
	var resp loadResponse
	err := b.postJSON(ctx, b.loadClient, "/v1/models/load", loadRequest{Device: device, TaskType: taskType}, &resp)
	if err != nil {
		return nil, err
	}
	return &httpHandle{backend: b, modelID: resp.ModelID}, nil
}

type httpHandle struct {
	backend *HTTPBackend
	modelID string
}

func (h *httpHandle) Generate(ctx context.Context, args Text2ImgArgs) ([]image.Image, error) {
	var resp text2ImgResponse
	req := text2ImgRequest{ModelID: h.modelID, Text2ImgArgs: args}
	if err := h.backend.postJSON(ctx, h.backend.client, "/v1/text2img", req, &resp); err != nil {
		return nil, err
	}

	images := make([]image.Image, 0, len(resp.Images))
	for i, encoded := range resp.Images {
		img, err := decodeBase64Image(encoded)
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 张图片失败: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func (h *httpHandle) Close() error {
	return nil
}

func (b *HTTPBackend) postJSON(ctx context.Context, client Doer, path string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// decodeBase64Image 解码 base64 图片，兼容 data URL 前缀
func decodeBase64Image(s string) (image.Image, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}
