package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/assist-by/fundbot/internal/notification"
)

// Client는 Discord 웹훅 알림 클라이언트입니다
type Client struct {
	tradeWebhook       string
	errorWebhook       string
	infoWebhook        string
	opportunityWebhook string
	client             *http.Client
}

var _ notification.Notifier = (*Client)(nil)

// ClientOption은 클라이언트 생성 옵션입니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithHTTPClient는 HTTP 클라이언트를 교체합니다
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient는 새로운 Discord 클라이언트를 생성합니다.
// 비어 있는 웹훅 URL로 가는 알림은 전송하지 않습니다.
func NewClient(tradeWebhook, errorWebhook, infoWebhook, opportunityWebhook string, opts ...ClientOption) *Client {
	c := &Client{
		tradeWebhook:       tradeWebhook,
		errorWebhook:       errorWebhook,
		infoWebhook:        infoWebhook,
		opportunityWebhook: opportunityWebhook,
		client:             &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sendToWebhook은 웹훅으로 메시지를 전송합니다
func (c *Client) sendToWebhook(webhookURL string, message WebhookMessage) error {
	if webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("메시지 마샬링 실패: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("요청 생성 실패: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("웹훅 전송 실패: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("웹훅 응답 에러: status=%d, body=%s", resp.StatusCode, string(body))
	}
	return nil
}
