// Package rules는 심볼 거래 필터와 레버리지 브라켓을 TTL 캐시로 제공합니다.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/assist-by/fundbot/internal/cache"
	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

const (
	DefaultFiltersTTL = 60 * time.Second
	DefaultBracketTTL = 5 * time.Minute
)

// Cache는 거래소 규칙 조회 결과를 나이 기반으로 캐시합니다.
// 규칙 변경 구독은 없으며 최대 지연은 TTL로만 제한됩니다.
type Cache struct {
	gateway  exchange.Gateway
	filters  *cache.TTL[string, *domain.SymbolFilters]
	brackets *cache.TTL[string, *domain.LeverageBracket]
}

// Option은 규칙 캐시 생성 옵션입니다
type Option func(*options)

type options struct {
	filtersTTL time.Duration
	bracketTTL time.Duration
	now        func() time.Time
}

// WithTTL은 필터/브라켓 TTL을 설정합니다
func WithTTL(filtersTTL, bracketTTL time.Duration) Option {
	return func(o *options) {
		o.filtersTTL = filtersTTL
		o.bracketTTL = bracketTTL
	}
}

// WithClock은 테스트용 시계를 주입합니다
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewCache는 새로운 규칙 캐시를 생성합니다
func NewCache(gateway exchange.Gateway, opts ...Option) *Cache {
	o := options{
		filtersTTL: DefaultFiltersTTL,
		bracketTTL: DefaultBracketTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache{
		gateway:  gateway,
		filters:  cache.NewTTL[string, *domain.SymbolFilters](o.filtersTTL, cache.WithClock[string, *domain.SymbolFilters](o.now)),
		brackets: cache.NewTTL[string, *domain.LeverageBracket](o.bracketTTL, cache.WithClock[string, *domain.LeverageBracket](o.now)),
	}
}

func filtersKey(market domain.Market, symbol string) string {
	return string(market) + ":" + symbol
}

// SymbolFilters는 심볼의 거래 필터를 반환합니다
func (c *Cache) SymbolFilters(ctx context.Context, market domain.Market, symbol string) (*domain.SymbolFilters, error) {
	f, err := c.filters.GetOrFetch(ctx, filtersKey(market, symbol), func(ctx context.Context) (*domain.SymbolFilters, error) {
		return c.gateway.GetSymbolFilters(ctx, market, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("심볼 필터 조회 실패 (%s): %w", symbol, err)
	}
	return f, nil
}

// LeverageBracket은 심볼의 레버리지 브라켓을 반환합니다
func (c *Cache) LeverageBracket(ctx context.Context, symbol string) (*domain.LeverageBracket, error) {
	b, err := c.brackets.GetOrFetch(ctx, symbol, func(ctx context.Context) (*domain.LeverageBracket, error) {
		return c.gateway.GetLeverageBracket(ctx, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("레버리지 브라켓 조회 실패 (%s): %w", symbol, err)
	}
	return b, nil
}

// InvalidateFilters는 심볼 필터 캐시를 즉시 무효화합니다
func (c *Cache) InvalidateFilters(market domain.Market, symbol string) {
	c.filters.Invalidate(filtersKey(market, symbol))
}

// InvalidateBracket은 레버리지 브라켓 캐시를 즉시 무효화합니다
func (c *Cache) InvalidateBracket(symbol string) {
	c.brackets.Invalidate(symbol)
}

// Purge는 모든 캐시를 비웁니다
func (c *Cache) Purge() {
	c.filters.Purge()
	c.brackets.Purge()
}
