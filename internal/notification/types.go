// Package notification은 포지션 진입/청산과 리밸런싱 알림 인터페이스를 정의합니다.
package notification

import "github.com/assist-by/fundbot/internal/domain"

const (
	ColorSuccess = 0x00FF00 // 녹색
	ColorError   = 0xFF0000 // 빨간색
	ColorInfo    = 0x0000FF // 파란색
	ColorWarning = 0xFFA500 // 주황색
)

// TradeAction은 알림 대상 거래 동작입니다
type TradeAction string

const (
	ActionOpen  TradeAction = "OPEN"
	ActionClose TradeAction = "CLOSE"
)

// Notifier는 알림 전송 인터페이스를 정의합니다
type Notifier interface {
	// SendError는 에러 알림을 전송합니다
	SendError(err error) error

	// SendInfo는 일반 정보 알림을 전송합니다
	SendInfo(message string) error

	// SendTradeInfo는 포지션 진입/청산 정보를 전송합니다
	SendTradeInfo(info TradeInfo) error

	// SendRebalance는 리밸런싱 점프 결과를 전송합니다
	SendRebalance(info RebalanceInfo) error

	// SendOpportunities는 상위 차익 기회 목록을 전송합니다
	SendOpportunities(opps []domain.Opportunity) error
}

// TradeInfo는 포지션 진입/청산 정보를 정의합니다
type TradeInfo struct {
	Action          TradeAction
	Symbol          string
	StrategyType    domain.StrategyType
	Investment      float64 // 총 투자금 (USDT)
	Leverage        int
	SpotQuantity    float64
	FuturesQuantity float64
	MarkPrice       float64
	FundingRate     float64
}

// RebalanceInfo는 리밸런싱 점프 정보를 정의합니다
type RebalanceInfo struct {
	FromSymbol     string
	ToSymbol       string
	FromAnnualized float64
	ToAnnualized   float64
	Success        bool
	Reason         string
}

// GetColorForAction은 거래 동작에 따른 색상을 반환합니다
func GetColorForAction(action TradeAction) int {
	switch action {
	case ActionOpen:
		return ColorSuccess
	case ActionClose:
		return ColorWarning
	default:
		return ColorInfo
	}
}

// Nop은 아무것도 전송하지 않는 Notifier입니다
type Nop struct{}

func (Nop) SendError(error) error { return nil }
func (Nop) SendInfo(string) error { return nil }
func (Nop) SendTradeInfo(TradeInfo) error { return nil }
func (Nop) SendRebalance(RebalanceInfo) error { return nil }
func (Nop) SendOpportunities([]domain.Opportunity) error { return nil }
