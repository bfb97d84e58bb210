// internal/exchange/binance/client.go
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/assist-by/fundbot/internal/exchange"
)

const (
	spotMainnetURL    = "https://api.binance.com"
	spotTestnetURL    = "https://testnet.binance.vision"
	futuresMainnetURL = "https://fapi.binance.com"
	futuresTestnetURL = "https://testnet.binancefuture.com"
)

// Client는 현물/선물/마진 지갑을 아우르는 바이낸스 게이트웨이입니다.
// 현물 클라이언트가 sapi 엔드포인트(지갑 이체, 마진 계정)까지 담당합니다.
type Client struct {
	spotURL    string
	futuresURL string
	httpClient *http.Client
	spot       *gobinance.Client
	futures    *futures.Client
}

var _ exchange.Gateway = (*Client)(nil)

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 클라이언트의 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTestnet은 테스트넷 사용 여부를 설정합니다
func WithTestnet(useTestnet bool) ClientOption {
	return func(c *Client) {
		if useTestnet {
			c.spotURL = spotTestnetURL
			c.futuresURL = futuresTestnetURL
		} else {
			c.spotURL = spotMainnetURL
			c.futuresURL = futuresMainnetURL
		}
	}
}

// WithBaseURLs는 현물/선물 기본 URL을 설정합니다
func WithBaseURLs(spotURL, futuresURL string) ClientOption {
	return func(c *Client) {
		c.spotURL = spotURL
		c.futuresURL = futuresURL
	}
}

// NewClient는 새로운 바이낸스 게이트웨이를 생성합니다
func NewClient(apiKey, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		spotURL:    spotMainnetURL,
		futuresURL: futuresMainnetURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	// 옵션 적용
	for _, opt := range opts {
		opt(c)
	}

	c.spot = gobinance.NewClient(apiKey, secretKey)
	c.spot.BaseURL = c.spotURL
	c.spot.HTTPClient = c.httpClient

	c.futures = gobinance.NewFuturesClient(apiKey, secretKey)
	c.futures.BaseURL = c.futuresURL
	c.futures.HTTPClient = c.httpClient

	return c
}

// GetServerTime은 선물 서버 시간을 조회합니다
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	ms, err := c.futures.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("서버 시간 조회 실패: %w", exchange.Classify(err))
	}
	return time.UnixMilli(ms), nil
}

// SyncTime은 바이낸스 서버와 시간을 동기화합니다.
// 이후 서명 요청의 timestamp는 SDK가 저장한 오프셋으로 보정됩니다.
func (c *Client) SyncTime(ctx context.Context) error {
	if _, err := c.spot.NewSetServerTimeService().Do(ctx); err != nil {
		return fmt.Errorf("현물 서버 시간 동기화 실패: %w", exchange.Classify(err))
	}
	if _, err := c.futures.NewSetServerTimeService().Do(ctx); err != nil {
		return fmt.Errorf("선물 서버 시간 동기화 실패: %w", exchange.Classify(err))
	}
	return nil
}

// parseFloat는 바이낸스 문자열 숫자를 변환하며 실패 시 0을 반환합니다
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
