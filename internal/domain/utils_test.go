package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorToStep(t *testing.T) {
	tests := []struct {
		quantity float64
		step     float64
		want     float64
	}{
		{0.75, 0.1, 0.7},
		{2.5, 0.1, 2.5},
		{0.123456, 0.001, 0.123},
		{1.0000001, 0.0001, 1},
		{0.3, 0.1, 0.3},
		{5, 0, 5},
		{-1, 0.1, 0},
	}

	for _, tt := range tests {
		got := FloorToStep(tt.quantity, tt.step)
		assert.Equal(t, tt.want, got, "FloorToStep(%v, %v)", tt.quantity, tt.step)
		assert.True(t, IsStepMultiple(got, tt.step))
	}
}

func TestCeilToStep(t *testing.T) {
	assert.Equal(t, 0.8, CeilToStep(0.71, 0.1))
	assert.Equal(t, 0.7, CeilToStep(0.7, 0.1))
	assert.Equal(t, 0.0, CeilToStep(0, 0.1))
}

func TestMinQuantityForNotional(t *testing.T) {
	// 2.0 × 2.5 = 5.0 정확히 경계
	assert.Equal(t, 2.5, MinQuantityForNotional(5, 2.0, 0.1))
	assert.Equal(t, 0.003, MinQuantityForNotional(5, 1999.99, 0.001))
	assert.Equal(t, 0.0, MinQuantityForNotional(5, 0, 0.1))
}

func TestNotionalAndFormat(t *testing.T) {
	assert.Equal(t, 5.0, Notional(2.5, 2.0))
	assert.Equal(t, 0.3, Notional(0.1, 3))
	assert.Equal(t, "0.001", FormatQuantity(0.001))
	assert.Equal(t, "2.5", FormatQuantity(2.5))
}

func TestFundingHelpers(t *testing.T) {
	assert.Equal(t, ShortFundingCapture, DirectionForFundingRate(0.001))
	assert.Equal(t, LongFundingCapture, DirectionForFundingRate(-0.001))
	assert.InDelta(t, 2.19, AnnualizedRate(-0.002), 1e-12)

	assert.Equal(t, Buy, ShortFundingCapture.SpotSide())
	assert.Equal(t, Sell, ShortFundingCapture.FuturesSide())
	assert.Equal(t, Sell, LongFundingCapture.SpotSide())
	assert.Equal(t, Buy, LongFundingCapture.FuturesSide())
	assert.False(t, StrategyType("neutral").IsValid())

	assert.Equal(t, "ETH", BaseAsset("ETHUSDT"))
	assert.Equal(t, "short-funding-capture:ETHUSDT", PositionID("ETHUSDT", ShortFundingCapture))
}
