package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange/exchangetest"
)

func TestCache_IndependentTTLs(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	gw := exchangetest.New()
	gw.AddFuturesSymbol("BTCUSDT", 40000, 0.001, 5, 125)

	c := NewCache(gw, WithClock(clock))
	ctx := context.Background()

	f, err := c.SymbolFilters(ctx, domain.FuturesMarket, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.001, f.StepSize)

	b, err := c.LeverageBracket(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 125, b.MaxLeverage)

	// 61초 후: 필터만 만료
	now = now.Add(61 * time.Second)
	_, err = c.SymbolFilters(ctx, domain.FuturesMarket, "BTCUSDT")
	require.NoError(t, err)
	_, err = c.LeverageBracket(ctx, "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, 2, gw.CallCount("GetSymbolFilters"))
	assert.Equal(t, 1, gw.CallCount("GetLeverageBracket"))

	// 5분 경과 후 브라켓도 만료
	now = now.Add(5 * time.Minute)
	_, err = c.LeverageBracket(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.CallCount("GetLeverageBracket"))
}

func TestCache_MarketsAreSeparateKeys(t *testing.T) {
	gw := exchangetest.New()
	gw.AddSpotPair("BTC", "USDT", 40000, 0.00001, 5)
	gw.AddFuturesSymbol("BTCUSDT", 40000, 0.001, 100, 125)

	c := NewCache(gw)
	ctx := context.Background()

	spot, err := c.SymbolFilters(ctx, domain.SpotMarket, "BTCUSDT")
	require.NoError(t, err)
	fut, err := c.SymbolFilters(ctx, domain.FuturesMarket, "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, 0.00001, spot.StepSize)
	assert.Equal(t, 0.001, fut.StepSize)
}

func TestCache_Invalidate(t *testing.T) {
	gw := exchangetest.New()
	gw.AddFuturesSymbol("ETHUSDT", 2000, 0.001, 5, 100)

	c := NewCache(gw)
	ctx := context.Background()

	_, err := c.SymbolFilters(ctx, domain.FuturesMarket, "ETHUSDT")
	require.NoError(t, err)
	c.InvalidateFilters(domain.FuturesMarket, "ETHUSDT")
	_, err = c.SymbolFilters(ctx, domain.FuturesMarket, "ETHUSDT")
	require.NoError(t, err)

	assert.Equal(t, 2, gw.CallCount("GetSymbolFilters"))
}

func TestCache_UnknownSymbol(t *testing.T) {
	c := NewCache(exchangetest.New())
	_, err := c.SymbolFilters(context.Background(), domain.FuturesMarket, "NOPEUSDT")
	assert.Error(t, err)
}
