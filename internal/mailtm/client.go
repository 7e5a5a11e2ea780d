package mailtm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL Mail.tm 公共 API 地址
const DefaultBaseURL = "https://api.mail.tm"

// APIError 上游返回的非预期状态码
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mail.tm API error: status %d: %s", e.StatusCode, e.Body)
}

// Address 邮件地址条目
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Domain 上游提供的可用域名
type Domain struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}

// AccountInfo 上游账户信息
type AccountInfo struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// MessageSummary 邮件列表条目
type MessageSummary struct {
	ID        string    `json:"id"`
	From      Address   `json:"from"`
	To        []Address `json:"to"`
	Subject   string    `json:"subject"`
	Intro     string    `json:"intro"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageDetail 单封邮件的完整内容
type MessageDetail struct {
	ID        string    `json:"id"`
	From      Address   `json:"from"`
	To        []Address `json:"to"`
	Subject   string    `json:"subject"`
	Intro     string    `json:"intro"`
	Seen      bool      `json:"seen"`
	Text      string    `json:"text"`
	HTML      []string  `json:"html"`
	CreatedAt time.Time `json:"createdAt"`
}

// hydraList Hydra 集合响应的通用外层
type hydraList[T any] struct {
	Members []T `json:"hydra:member"`
}

// Client Mail.tm REST API 客户端，内置出站限速
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// Option 客户端可选配置
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger 设置日志器
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRequestsPerSecond 设置出站请求速率上限
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
		}
	}
}

// NewClient 创建 Mail.tm 客户端
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(8), 10),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 返回上游 API 地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path, token, contentType string, body, out any, wantStatus int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to mail.tm failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("unexpected upstream status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ListDomains 获取上游可用域名
func (c *Client) ListDomains(ctx context.Context) ([]Domain, error) {
	var list hydraList[Domain]
	if err := c.do(ctx, http.MethodGet, "/domains", "", "", nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return list.Members, nil
}

// CreateAccount 在上游创建账户
func (c *Client) CreateAccount(ctx context.Context, address, password string) (*AccountInfo, error) {
	payload := map[string]string{"address": address, "password": password}

	var info AccountInfo
	if err := c.do(ctx, http.MethodPost, "/accounts", "", "", payload, &info, http.StatusCreated); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetToken 获取账户的 Bearer Token
func (c *Client) GetToken(ctx context.Context, address, password string) (string, error) {
	payload := map[string]string{"address": address, "password": password}

	var result struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/token", "", "", payload, &result, http.StatusOK); err != nil {
		return "", err
	}
	return result.Token, nil
}

// ListMessages 获取账户收件箱的邮件列表
func (c *Client) ListMessages(ctx context.Context, token string) ([]MessageSummary, error) {
	var list hydraList[MessageSummary]
	if err := c.do(ctx, http.MethodGet, "/messages", token, "", nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return list.Members, nil
}

// GetMessage 获取单封邮件的完整内容
func (c *Client) GetMessage(ctx context.Context, token, messageID string) (*MessageDetail, error) {
	var detail MessageDetail
	if err := c.do(ctx, http.MethodGet, "/messages/"+messageID, token, "", nil, &detail, http.StatusOK); err != nil {
		return nil, err
	}
	return &detail, nil
}

// MarkSeen 在上游标记邮件为已读
func (c *Client) MarkSeen(ctx context.Context, token, messageID string) error {
	payload := map[string]bool{"seen": true}
	return c.do(ctx, http.MethodPatch, "/messages/"+messageID, token,
		"application/merge-patch+json", payload, nil, http.StatusOK)
}

// DeleteMessage 在上游删除邮件
func (c *Client) DeleteMessage(ctx context.Context, token, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+messageID, token, "", nil, nil, http.StatusNoContent)
}

// DeleteAccount 在上游删除账户
func (c *Client) DeleteAccount(ctx context.Context, token, accountID string) error {
	return c.do(ctx, http.MethodDelete, "/accounts/"+accountID, token, "", nil, nil, http.StatusNoContent)
}
