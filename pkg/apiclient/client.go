// Package apiclient 提供了访问服务端回合与对话接口的类型化 HTTP 客户端。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"axtro-go/internal/model"
)

// APIError 表示服务端返回的业务失败（success=false）。
// 传输层错误（网络不可达、请求被取消）以原始 error 返回，
// 以便调用方用 errors.Is(err, context.Canceled) 区分取消与失败。
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client 是服务端 API 的 HTTP 客户端。
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New 创建一个新的 Client 实例。token 可以为空，登录后通过 SetToken 设置。
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// SetToken 设置后续请求携带的访问令牌。
func (c *Client) SetToken(token string) {
	c.token = token
}

// apiResponse 是服务端统一的响应信封。
type apiResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         *model.User     `json:"user"`
	Chat         *model.Chat     `json:"chat"`
	Chats        []model.Chat    `json:"chats"`
	Reply        *model.Message  `json:"reply"`
	Preferences  json.RawMessage `json:"preferences"`
}

// do 发送一个请求并解析统一响应信封。
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		reqBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(reqBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("服务端返回非 200 状态: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if !ar.Success {
		return nil, &APIError{Message: ar.Message}
	}
	return &ar, nil
}

// Login 校验凭证并在成功后保存访问令牌。
func (c *Client) Login(ctx context.Context, username, password string) error {
	ar, err := c.do(ctx, "POST", "/api/v1/users/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}
	c.token = ar.Token
	return nil
}

// Register 注册一个新用户。
func (c *Client) Register(ctx context.Context, username, password, name string) error {
	_, err := c.do(ctx, "POST", "/api/v1/users/register", map[string]string{
		"username": username,
		"password": password,
		"name":     name,
	})
	return err
}

// GetChats 返回当前用户的全部对话。
func (c *Client) GetChats(ctx context.Context) ([]model.Chat, error) {
	ar, err := c.do(ctx, "GET", "/api/v1/chat/get", nil)
	if err != nil {
		return nil, err
	}
	return ar.Chats, nil
}

// CreateChat 创建一个新的空对话。
func (c *Client) CreateChat(ctx context.Context) (*model.Chat, error) {
	ar, err := c.do(ctx, "POST", "/api/v1/chat/create", nil)
	if err != nil {
		return nil, err
	}
	return ar.Chat, nil
}

// DeleteChat 删除一条对话。
func (c *Client) DeleteChat(ctx context.Context, chatID uint) error {
	_, err := c.do(ctx, "POST", "/api/v1/chat/delete", map[string]uint{"chatId": chatID})
	return err
}

// SendTextMessage 提交一个文本回合并返回助手回复。
func (c *Client) SendTextMessage(ctx context.Context, chatID uint, prompt string, profile *model.AssistantProfile) (*model.Message, error) {
	ar, err := c.do(ctx, "POST", "/api/v1/message/text", map[string]interface{}{
		"chatId":  chatID,
		"prompt":  prompt,
		"profile": profile,
	})
	if err != nil {
		return nil, err
	}
	return ar.Reply, nil
}

// SendImageMessage 提交一个图片回合并返回助手回复（content 为图片 URL）。
func (c *Client) SendImageMessage(ctx context.Context, chatID uint, prompt string, profile *model.AssistantProfile, publish bool) (*model.Message, error) {
	ar, err := c.do(ctx, "POST", "/api/v1/message/image", map[string]interface{}{
		"chatId":      chatID,
		"prompt":      prompt,
		"profile":     profile,
		"isPublished": publish,
	})
	if err != nil {
		return nil, err
	}
	return ar.Reply, nil
}

// LoadPreferences 读取指定命名空间的设置数据块。
func (c *Client) LoadPreferences(ctx context.Context, namespace string) (json.RawMessage, error) {
	ar, err := c.do(ctx, "GET", "/api/v1/users/preferences/"+namespace, nil)
	if err != nil {
		return nil, err
	}
	return ar.Preferences, nil
}

// SavePreferences 覆盖写入指定命名空间的设置数据块。
func (c *Client) SavePreferences(ctx context.Context, namespace string, blob json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, "PUT", c.baseURL+"/api/v1/users/preferences/"+namespace, bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if !ar.Success {
		return &APIError{Message: ar.Message}
	}
	return nil
}
