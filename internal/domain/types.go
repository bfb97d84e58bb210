package domain

// QuoteAsset는 모든 잔고를 정규화하는 기준 통화입니다
const QuoteAsset = "USDT"

// FundingPeriodsPerDay는 하루 펀딩 정산 횟수입니다 (8시간 주기)
const FundingPeriodsPerDay = 3

// Market은 주문/필터가 적용되는 시장을 구분합니다
type Market string

const (
	SpotMarket    Market = "SPOT"
	FuturesMarket Market = "FUTURES"
)

// StrategyType은 펀딩비 차익 전략 유형을 정의합니다
type StrategyType string

const (
	// ShortFundingCapture는 현물 매수 + 선물 숏으로 양(+)의 펀딩비를 수취합니다
	ShortFundingCapture StrategyType = "short-funding-capture"
	// LongFundingCapture는 현물 매도 + 선물 롱으로 음(-)의 펀딩비를 수취합니다
	LongFundingCapture StrategyType = "long-funding-capture"
)

// IsValid는 지원하는 전략 유형인지 확인합니다
func (s StrategyType) IsValid() bool {
	return s == ShortFundingCapture || s == LongFundingCapture
}

// FuturesSide는 전략의 선물 레그 진입 방향을 반환합니다
func (s StrategyType) FuturesSide() OrderSide {
	if s == LongFundingCapture {
		return Buy
	}
	return Sell
}

// SpotSide는 전략의 현물 레그 진입 방향을 반환합니다
func (s StrategyType) SpotSide() OrderSide {
	if s == LongFundingCapture {
		return Sell
	}
	return Buy
}

// DirectionForFundingRate는 펀딩비 부호에서 전략 방향을 결정합니다.
// 양의 펀딩비는 숏 보유자가 지급받으므로 short-funding-capture 입니다.
func DirectionForFundingRate(rate float64) StrategyType {
	if rate < 0 {
		return LongFundingCapture
	}
	return ShortFundingCapture
}

// AnnualizedRate는 8시간 펀딩비를 연율로 환산합니다
func AnnualizedRate(fundingRate float64) float64 {
	if fundingRate < 0 {
		fundingRate = -fundingRate
	}
	return fundingRate * FundingPeriodsPerDay * 365
}

// OrderSide는 주문 방향을 정의합니다
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite는 반대 주문 방향을 반환합니다
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType은 주문 유형을 정의합니다
type OrderType string

const (
	MarketOrder OrderType = "MARKET"
	LimitOrder  OrderType = "LIMIT"
)

// ErrorKind는 사전 검증 결과의 실패 유형을 나타냅니다
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindValidation        ErrorKind = "VALIDATION"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindConversionFailure ErrorKind = "CONVERSION_FAILURE"
)
