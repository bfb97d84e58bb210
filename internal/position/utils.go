package position

import (
	"github.com/assist-by/fundbot/internal/domain"
)

// ExitSides는 전략의 현물/선물 레그를 청산하는 주문 방향을 반환합니다
func ExitSides(strategy domain.StrategyType) (spot, futures domain.OrderSide) {
	return strategy.SpotSide().Opposite(), strategy.FuturesSide().Opposite()
}

// reservation은 진입 처리 중인 포지션의 초기 상태를 만듭니다
func reservation(req domain.LaunchRequest) domain.ManagedPosition {
	return domain.ManagedPosition{
		ID:           domain.PositionID(req.Symbol, req.StrategyType),
		Symbol:       req.Symbol,
		StrategyType: req.StrategyType,
		Investment:   req.Investment,
		Leverage:     req.Leverage,
		AutoManaged:  req.AutoManaged,
		Status:       domain.StatusPending,
	}
}
