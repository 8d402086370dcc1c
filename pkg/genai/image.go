package genai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"axtro-go/internal/config"
)

// ImageClient 定义了图片生成客户端的接口。
type ImageClient interface {
	// GenerateImage 以 prompt 触发网关生成并返回图片字节。
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

type gatewayImageClient struct {
	cfg    config.ImageGatewayConfig
	client *http.Client
}

// NewImageClient 根据配置创建一个新的图片生成客户端。
func NewImageClient(cfg config.ImageGatewayConfig) ImageClient {
	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &gatewayImageClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// GenerateImage 将 prompt URL 编码进网关路径并拉取生成结果。
// 网关在首次访问该路径时触发生成，响应体即为图片字节。
func (c *gatewayImageClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if c.cfg.URLEndpoint == "" {
		return nil, ErrNotConfigured
	}

	folder := c.cfg.Folder
	if folder == "" {
		folder = "Axtro"
	}
	encodedPrompt := url.PathEscape(prompt)
	generatedImageURL := fmt.Sprintf("%s/ik-genimg-prompt-%s/%s/%d.png",
		c.cfg.URLEndpoint, encodedPrompt, folder, time.Now().UnixMilli())

	req, err := http.NewRequestWithContext(ctx, "GET", generatedImageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call image gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("image gateway returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image bytes: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyReply
	}
	return data, nil
}
