package binance

import (
	"context"
	"fmt"
	"strings"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

// GetPrices는 현물 전체 심볼의 최신 가격을 조회합니다
func (c *Client) GetPrices(ctx context.Context) (map[string]float64, error) {
	res, err := c.spot.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("가격 조회 실패: %w", exchange.Classify(err))
	}

	prices := make(map[string]float64, len(res))
	for _, p := range res {
		if v := parseFloat(p.Price); v > 0 {
			prices[p.Symbol] = v
		}
	}
	return prices, nil
}

// GetTradableSymbols는 현재 거래 가능한(TRADING) 현물 심볼 집합을 조회합니다
func (c *Client) GetTradableSymbols(ctx context.Context) (map[string]bool, error) {
	info, err := c.spot.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("거래소 정보 조회 실패: %w", exchange.Classify(err))
	}

	tradable := make(map[string]bool, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == "TRADING" {
			tradable[s.Symbol] = true
		}
	}
	return tradable, nil
}

// GetSymbolFilters는 특정 심볼의 거래 규칙 필터를 조회합니다
func (c *Client) GetSymbolFilters(ctx context.Context, market domain.Market, symbol string) (*domain.SymbolFilters, error) {
	var rawFilters []map[string]interface{}

	switch market {
	case domain.FuturesMarket:
		info, err := c.futures.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("선물 심볼 정보 조회 실패: %w", exchange.Classify(err))
		}
		for _, s := range info.Symbols {
			if s.Symbol == symbol {
				rawFilters = s.Filters
				break
			}
		}
	default:
		info, err := c.spot.NewExchangeInfoService().Symbol(symbol).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("현물 심볼 정보 조회 실패: %w", exchange.Classify(err))
		}
		for _, s := range info.Symbols {
			if s.Symbol == symbol {
				rawFilters = s.Filters
				break
			}
		}
	}

	if rawFilters == nil {
		return nil, fmt.Errorf("심볼 정보를 찾을 수 없음: %s (%s)", symbol, market)
	}

	filters := &domain.SymbolFilters{Symbol: symbol, Market: market}
	for _, f := range rawFilters {
		filterType, _ := f["filterType"].(string)
		switch filterType {
		case "LOT_SIZE": // 수량 단위 필터
			filters.StepSize = filterFloat(f, "stepSize")
			filters.MinQty = filterFloat(f, "minQty")
			filters.MaxQty = filterFloat(f, "maxQty")
		case "PRICE_FILTER": // 가격 단위 필터
			filters.TickSize = filterFloat(f, "tickSize")
		case "MIN_NOTIONAL": // 최소 주문 가치 필터 (선물은 notional, 구 현물은 minNotional)
			if v := filterFloat(f, "notional"); v > 0 {
				filters.MinNotional = v
			} else {
				filters.MinNotional = filterFloat(f, "minNotional")
			}
		case "NOTIONAL": // 현물 신규 명목가치 필터
			filters.MinNotional = filterFloat(f, "minNotional")
		}
	}

	return filters, nil
}

func filterFloat(f map[string]interface{}, key string) float64 {
	switch v := f[key].(type) {
	case string:
		return parseFloat(v)
	case float64:
		return v
	}
	return 0
}

// GetLeverageBracket은 심볼의 첫 번째(최대 레버리지) 브라켓을 조회합니다
func (c *Client) GetLeverageBracket(ctx context.Context, symbol string) (*domain.LeverageBracket, error) {
	brackets, err := c.futures.NewGetLeverageBracketService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("레버리지 브라켓 조회 실패: %w", exchange.Classify(err))
	}

	for _, sb := range brackets {
		if sb.Symbol != symbol || len(sb.Brackets) == 0 {
			continue
		}
		// 첫 구간이 가장 높은 레버리지를 허용합니다
		b := sb.Brackets[0]
		return &domain.LeverageBracket{
			Symbol:           symbol,
			MaxLeverage:      b.InitialLeverage,
			MaintMarginRatio: b.MaintMarginRatio,
			NotionalCap:      b.NotionalCap,
		}, nil
	}

	return nil, fmt.Errorf("레버리지 브라켓 정보가 없습니다: %s", symbol)
}

// GetMarkPrice는 선물 마크 가격을 조회합니다
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	res, err := c.futures.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("마크 가격 조회 실패: %w", exchange.Classify(err))
	}
	for _, p := range res {
		if p.Symbol == symbol {
			return parseFloat(p.MarkPrice), nil
		}
	}
	return 0, fmt.Errorf("마크 가격 정보가 없습니다: %s", symbol)
}

// GetFundingSnapshots는 USDT 무기한 선물의 펀딩비와 24시간 통계를 합쳐 조회합니다
func (c *Client) GetFundingSnapshots(ctx context.Context) ([]domain.FundingSnapshot, error) {
	premiums, err := c.futures.NewPremiumIndexService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("펀딩비 조회 실패: %w", exchange.Classify(err))
	}

	stats, err := c.futures.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("24시간 통계 조회 실패: %w", exchange.Classify(err))
	}

	type tickerStat struct {
		quoteVolume float64
		change      float64
	}
	bySymbol := make(map[string]tickerStat, len(stats))
	for _, s := range stats {
		bySymbol[s.Symbol] = tickerStat{
			quoteVolume: parseFloat(s.QuoteVolume),
			change:      parseFloat(s.PriceChangePercent),
		}
	}

	snapshots := make([]domain.FundingSnapshot, 0, len(premiums))
	for _, p := range premiums {
		// USDT 마진 선물만 사용
		if !strings.HasSuffix(p.Symbol, domain.QuoteAsset) {
			continue
		}
		st, ok := bySymbol[p.Symbol]
		if !ok {
			continue
		}
		snapshots = append(snapshots, domain.FundingSnapshot{
			Symbol:                p.Symbol,
			FundingRate:           parseFloat(p.LastFundingRate),
			QuoteVolume24h:        st.quoteVolume,
			PriceChangePercent24h: st.change,
			MarkPrice:             parseFloat(p.MarkPrice),
		})
	}

	return snapshots, nil
}
