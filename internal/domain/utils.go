package domain

import (
	"github.com/shopspring/decimal"
)

// FloorToStep은 수량을 stepSize의 배수로 내림합니다.
// stepSize가 0 이하이면 값을 그대로 반환합니다.
func FloorToStep(quantity, stepSize float64) float64 {
	if stepSize <= 0 {
		return quantity
	}
	if quantity <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(quantity)
	step := decimal.NewFromFloat(stepSize)
	steps := q.Div(step).Floor()
	return steps.Mul(step).InexactFloat64()
}

// CeilToStep은 수량을 stepSize의 배수로 올림합니다
func CeilToStep(quantity, stepSize float64) float64 {
	if stepSize <= 0 {
		return quantity
	}
	if quantity <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(quantity)
	step := decimal.NewFromFloat(stepSize)
	steps := q.Div(step).Ceil()
	return steps.Mul(step).InexactFloat64()
}

// IsStepMultiple은 수량이 stepSize의 정확한 배수인지 확인합니다
func IsStepMultiple(quantity, stepSize float64) bool {
	if stepSize <= 0 {
		return true
	}
	q := decimal.NewFromFloat(quantity)
	step := decimal.NewFromFloat(stepSize)
	return q.Mod(step).IsZero()
}

// MinQuantityForNotional은 minNotional 이상이 되는 가장 작은 step 배수 수량을 반환합니다
func MinQuantityForNotional(minNotional, price, stepSize float64) float64 {
	if price <= 0 {
		return 0
	}
	n := decimal.NewFromFloat(minNotional)
	p := decimal.NewFromFloat(price)
	raw := n.Div(p)
	if stepSize <= 0 {
		return raw.InexactFloat64()
	}
	step := decimal.NewFromFloat(stepSize)
	qty := raw.Div(step).Ceil().Mul(step)
	// 나눗셈 반올림으로 경계값이 모자라면 한 단계 올림
	for qty.Mul(p).LessThan(n) {
		qty = qty.Add(step)
	}
	return qty.InexactFloat64()
}

// Notional은 수량 × 가격을 decimal로 계산해 반환합니다
func Notional(quantity, price float64) float64 {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).InexactFloat64()
}

// FormatQuantity는 주문 전송용 수량 문자열을 반환합니다
func FormatQuantity(quantity float64) string {
	return decimal.NewFromFloat(quantity).String()
}
