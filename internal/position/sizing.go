package position

import (
	"fmt"

	"github.com/assist-by/fundbot/internal/domain"
)

// HedgeConfig는 현물 헤지 레그 수량 계산을 위한 설정을 정의합니다
type HedgeConfig struct {
	FuturesQuantity float64 // 검증된 선물 레그 수량
	Price           float64 // 현물 가격
	StepSize        float64 // 현물 수량 최소 단위
	MinQty          float64 // 현물 최소 수량
	MinNotional     float64 // 현물 최소 주문 가치
	MaxQuantity     float64 // 보유 수량 상한 (현물 매도 시 가용 기초자산, 0이면 제한 없음)
}

// CalculateHedgeQuantity는 선물 레그를 상쇄하는 현물 수량을 계산합니다.
// 현물 stepSize로 내림하며 보유 상한을 넘지 않습니다.
func CalculateHedgeQuantity(cfg HedgeConfig) (float64, error) {
	if cfg.Price <= 0 {
		return 0, fmt.Errorf("유효하지 않은 현물 가격: %.8f", cfg.Price)
	}

	qty := cfg.FuturesQuantity
	if cfg.MaxQuantity > 0 && qty > cfg.MaxQuantity {
		qty = cfg.MaxQuantity
	}
	qty = domain.FloorToStep(qty, cfg.StepSize)

	if qty <= 0 || (cfg.MinQty > 0 && qty < cfg.MinQty) {
		return 0, fmt.Errorf("현물 수량 %s이(가) 최소 수량 %s 미만입니다",
			domain.FormatQuantity(qty), domain.FormatQuantity(cfg.MinQty))
	}

	if notional := domain.Notional(qty, cfg.Price); notional < cfg.MinNotional {
		return 0, fmt.Errorf("계산된 현물 주문 가치(%.2f)가 최소 주문 가치(%.2f)보다 작습니다",
			notional, cfg.MinNotional)
	}

	return qty, nil
}
