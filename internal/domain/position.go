package domain

import "time"

// PositionStatus는 관리 포지션의 상태입니다
type PositionStatus string

const (
	StatusPending PositionStatus = "PENDING" // 진입 준비 중 (ID 예약)
	StatusActive  PositionStatus = "ACTIVE"
	StatusClosing PositionStatus = "CLOSING"
)

// ManagedPosition은 엔진이 관리하는 펀딩비 차익 포지션입니다
type ManagedPosition struct {
	ID                 string
	Symbol             string
	StrategyType       StrategyType
	Investment         float64 // 총 투자금 (USDT)
	Leverage           int
	AutoManaged        bool // 리밸런서 대상 여부
	StartTime          time.Time
	Status             PositionStatus
	CurrentFundingRate float64
	SpotQuantity       float64 // 현물 레그 수량
	FuturesQuantity    float64 // 선물 레그 수량 (절대값)
}

// PositionID는 심볼과 전략으로 포지션 ID를 만듭니다.
// 같은 심볼/전략 조합은 동시에 하나만 존재할 수 있습니다.
func PositionID(symbol string, strategy StrategyType) string {
	return string(strategy) + ":" + symbol
}

// LaunchRequest는 포지션 진입 요청입니다
type LaunchRequest struct {
	Symbol          string
	StrategyType    StrategyType
	Investment      float64 // 총 투자금 (USDT), 현물/선물 레그에 절반씩 배분
	Leverage        int
	AutoConvert     bool     // 부족 자금을 다른 자산 변환으로 충당
	DryRun          bool     // 계획만 계산하고 주문/이체는 하지 않음
	RetainBuffer    float64  // 항상 남겨둘 USDT
	MinConvertValue float64  // 이 가치 미만 자산은 변환 후보에서 제외
	AllowAssets     []string // 비어있지 않으면 이 자산만 변환 후보
	AutoManaged     bool
}

// LegInvestment는 레그 하나에 배정되는 명목 금액입니다
func (r LaunchRequest) LegInvestment() float64 {
	return r.Investment / 2
}
