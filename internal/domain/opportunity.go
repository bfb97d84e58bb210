package domain

// Rating은 기회 등급을 정의합니다
type Rating string

const (
	RatingLow     Rating = "LOW"
	RatingMedium  Rating = "MEDIUM"
	RatingHigh    Rating = "HIGH"
	RatingExtreme Rating = "EXTREME"
)

// Opportunity는 점수가 매겨진 펀딩비 차익 기회입니다
type Opportunity struct {
	Symbol         string
	FundingRate    float64
	Liquidity      float64 // 24시간 거래대금
	Volatility     float64 // 24시간 가격 변동률 %
	Score          float64
	Rating         Rating
	Direction      StrategyType
	AnnualizedRate float64
	MarkPrice      float64
}
