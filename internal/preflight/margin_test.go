package preflight

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange/exchangetest"
	"github.com/assist-by/fundbot/internal/rules"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newValidator(gw *exchangetest.Gateway, cfg MarginConfig) *MarginValidator {
	return NewMarginValidator(gw, rules.NewCache(gw), cfg, quietLog())
}

func TestValidate_MinNotionalBoundaryIsValid(t *testing.T) {
	gw := exchangetest.New()
	gw.AddFuturesSymbol("XUSDT", 2.0, 0.1, 5, 20)
	gw.SetBalance(domain.FuturesWallet, "USDT", 10)

	d, err := newValidator(gw, DefaultMarginConfig()).Validate(context.Background(), MarginRequest{
		Symbol: "XUSDT", Side: domain.Sell, Investment: 5, Leverage: 3,
	})
	require.NoError(t, err)

	assert.True(t, d.Valid, d.Error)
	assert.Equal(t, domain.KindNone, d.Kind)
	assert.NotEmpty(t, d.CorrelationID)
	assert.InDelta(t, 2.5, d.Sizing.Quantity, 1e-12)
	assert.InDelta(t, 5.0, d.Sizing.Notional, 1e-12)
	assert.False(t, d.Sizing.RoundedUp)
	assert.InDelta(t, 5.0/3, d.Cost.InitialMargin, 1e-9)
	assert.InDelta(t, 5.0/3+0.002+0.005, d.Cost.Total, 1e-9)
	assert.Nil(t, d.Deficit)
	assert.Nil(t, d.SuggestedQuantity)
}

func TestValidate_RoundUpExceedsBudget(t *testing.T) {
	gw := exchangetest.New()
	gw.AddFuturesSymbol("XUSDT", 2.0, 0.1, 5, 20)
	gw.SetBalance(domain.FuturesWallet, "USDT", 1.5)

	d, err := newValidator(gw, DefaultMarginConfig()).Validate(context.Background(), MarginRequest{
		Symbol: "XUSDT", Side: domain.Sell, Investment: 1.5, Leverage: 3,
	})
	require.NoError(t, err)

	assert.False(t, d.Valid)
	assert.Equal(t, domain.KindInsufficientFunds, d.Kind)
	assert.InDelta(t, 0.75, d.Sizing.RawQuantity, 1e-12)
	assert.InDelta(t, 2.5, d.Sizing.Quantity, 1e-12)
	assert.True(t, d.Sizing.RoundedUp)

	require.NotNil(t, d.Deficit)
	assert.InDelta(t, 5.0/3+0.002+0.005-1.5, *d.Deficit, 1e-9)
	require.NotNil(t, d.SuggestedQuantity)
	assert.InDelta(t, 2.2, *d.SuggestedQuantity, 1e-12)
	assert.True(t, domain.IsStepMultiple(*d.SuggestedQuantity, 0.1))
}

func TestValidate_RoundUpDisabledRejects(t *testing.T) {
	gw := exchangetest.New()
	gw.AddFuturesSymbol("XUSDT", 2.0, 0.1, 5, 20)
	gw.SetBalance(domain.FuturesWallet, "USDT", 100)

	cfg := DefaultMarginConfig()
	cfg.RoundUpToMinNotional = false
	d, err := newValidator(gw, cfg).Validate(context.Background(), MarginRequest{
		Symbol: "XUSDT", Side: domain.Sell, Investment: 1.5, Leverage: 3,
	})
	require.NoError(t, err)

	assert.False(t, d.Valid)
	assert.Equal(t, domain.KindValidation, d.Kind)
	assert.InDelta(t, 0.7, d.Sizing.Quantity, 1e-12)
	assert.Contains(t, d.Error, "최소 주문 금액")
}

func TestValidate_LeverageAboveBracket(t *testing.T) {
	gw := exchangetest.New()
	gw.AddFuturesSymbol("XUSDT", 2.0, 0.1, 5, 20)
	gw.SetBalance(domain.FuturesWallet, "USDT", 100)

	d, err := newValidator(gw, DefaultMarginConfig()).Validate(context.Background(), MarginRequest{
		Symbol: "XUSDT", Side: domain.Buy, Investment: 50, Leverage: 25,
	})
	require.NoError(t, err)

	assert.False(t, d.Valid)
	assert.Equal(t, domain.KindValidation, d.Kind)
	assert.Equal(t, 20, d.Symbol.MaxLeverage)
	assert.Zero(t, d.Sizing.Quantity)
}

func TestValidate_QuantityAlwaysStepMultiple(t *testing.T) {
	gw := exchangetest.New()
	gw.AddFuturesSymbol("BTCUSDT", 43123.7, 0.001, 100, 125)
	gw.SetBalance(domain.FuturesWallet, "USDT", 100000)
	v := newValidator(gw, DefaultMarginConfig())

	for _, inv := range []float64{50, 99.99, 123.45, 1000, 7777.77, 25000} {
		d, err := v.Validate(context.Background(), MarginRequest{
			Symbol: "BTCUSDT", Side: domain.Sell, Investment: inv, Leverage: 10,
		})
		require.NoError(t, err)
		assert.True(t, domain.IsStepMultiple(d.Sizing.Quantity, 0.001), "investment %.2f → %v", inv, d.Sizing.Quantity)
		if d.Valid {
			assert.GreaterOrEqual(t, d.Sizing.Notional, 100.0)
		} else {
			assert.NotNil(t, d.Deficit)
		}
	}
}

func TestValidate_GatewayFailureReturnsError(t *testing.T) {
	gw := exchangetest.New()
	gw.AddFuturesSymbol("XUSDT", 2.0, 0.1, 5, 20)
	gw.WalletErrors[domain.FuturesWallet] = errors.New("connection reset")

	d, err := newValidator(gw, DefaultMarginConfig()).Validate(context.Background(), MarginRequest{
		Symbol: "XUSDT", Side: domain.Sell, Investment: 5, Leverage: 3,
	})
	require.Error(t, err)
	require.NotNil(t, d)
	assert.False(t, d.Valid)
	assert.NotEmpty(t, d.CorrelationID)
}

func TestValidate_AssumeAvailableSkipsBalanceLookup(t *testing.T) {
	gw := exchangetest.New()
	gw.AddFuturesSymbol("XUSDT", 2.0, 0.1, 5, 20)
	gw.WalletErrors[domain.FuturesWallet] = errors.New("connection reset")

	projected := 10.0
	d, err := newValidator(gw, DefaultMarginConfig()).Validate(context.Background(), MarginRequest{
		Symbol: "XUSDT", Side: domain.Sell, Investment: 5, Leverage: 3, AssumeAvailable: &projected,
	})
	require.NoError(t, err)
	assert.True(t, d.Valid, d.Error)
	assert.InDelta(t, 10.0, d.Account.Available, 1e-12)
	assert.Equal(t, 0, gw.CallCount("Get"+string(domain.FuturesWallet)+"Balances"))
}
