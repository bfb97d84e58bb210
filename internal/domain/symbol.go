package domain

import "strings"

// SymbolFilters는 심볼의 거래 규칙 필터를 나타냅니다
type SymbolFilters struct {
	Symbol      string  // 심볼 이름 (예: BTCUSDT)
	Market      Market  // 현물/선물 구분
	StepSize    float64 // 수량 최소 단위 (예: 0.001 BTC)
	TickSize    float64 // 가격 최소 단위 (예: 0.01 USDT)
	MinNotional float64 // 최소 주문 가치 (예: 5 USDT)
	MinQty      float64 // 최소 주문 수량
	MaxQty      float64 // 최대 주문 수량 (0이면 제한 없음)
}

// LeverageBracket은 심볼의 레버리지 구간 정보를 나타냅니다
type LeverageBracket struct {
	Symbol           string  // 심볼
	MaxLeverage      int     // 최대 레버리지
	MaintMarginRatio float64 // 유지증거금 비율
	NotionalCap      float64 // 명목가치 상한
}

// FundingSnapshot은 외부 펀딩비 수집 결과 한 건입니다
type FundingSnapshot struct {
	Symbol                string
	FundingRate           float64 // 8시간 펀딩비 (0.001 = 0.1%)
	QuoteVolume24h        float64 // 24시간 거래대금 (유동성)
	PriceChangePercent24h float64 // 24시간 가격 변동률 % (변동성)
	MarkPrice             float64
}

// BaseAsset는 기준 통화 페어 심볼에서 기초 자산을 추출합니다 (예: BTCUSDT → BTC)
func BaseAsset(symbol string) string {
	return strings.TrimSuffix(symbol, QuoteAsset)
}
