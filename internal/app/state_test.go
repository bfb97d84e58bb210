package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/fundbot/internal/config"
	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange/exchangetest"
	"github.com/assist-by/fundbot/internal/rebalance"
)

func testConfig() *config.Config {
	var cfg config.Config
	cfg.App.ScanInterval = 15 * time.Minute
	cfg.Trading.Leverage = 5
	cfg.Trading.TakerFeeRate = 0.0004
	cfg.Trading.SlippageBps = 10
	cfg.Trading.RoundUpToMinNotional = true
	cfg.Trading.FeeBuffer = 0.001
	cfg.Trading.Tolerance = 0.01
	cfg.Opportunity.MinFundingRate = 0.0001
	cfg.Opportunity.MinLiquidity = 1_000_000
	cfg.Rebalance.Interval = time.Hour
	cfg.Rules.FiltersTTL = time.Minute
	cfg.Rules.BracketTTL = 5 * time.Minute
	cfg.Conversion.WindowSize = 3
	return &cfg
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestState_DryRunLaunchAndScan(t *testing.T) {
	gw := exchangetest.New()
	gw.AddSpotPair("ETH", "USDT", 2000, 0.0001, 5)
	gw.AddFuturesSymbol("ETHUSDT", 2000, 0.001, 5, 20)
	gw.Funding = []domain.FundingSnapshot{{Symbol: "ETHUSDT", FundingRate: 0.002, QuoteVolume24h: 2_000_000, PriceChangePercent24h: 1}}
	gw.SetBalance(domain.SpotWallet, "USDT", 2000)

	s := New(testConfig(), quietLogger(), gw, nil)
	defer s.Close()

	opps, err := s.Feed.Opportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, domain.ShortFundingCapture, opps[0].Direction)

	req := s.LaunchRequest("ETHUSDT", opps[0].Direction, 1000, 0)
	assert.Equal(t, 5, req.Leverage)
	req.DryRun = true

	res, err := s.Launcher.Launch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.OK(), res.Error)
	assert.Zero(t, s.Registry.Len())
	assert.Empty(t, gw.Transfers)

	assert.Equal(t, rebalance.StateIdle, s.Rebalancer.Status().State)
}

func TestState_CloseStopsRebalancer(t *testing.T) {
	s := New(testConfig(), quietLogger(), exchangetest.New(), nil)

	done := make(chan error, 1)
	go func() { done <- s.RunRebalancer(context.Background()) }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.scheduler != nil
	}, time.Second, 5*time.Millisecond)

	s.Close()
	s.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("리밸런서가 종료되지 않음")
	}

	assert.Error(t, s.RunRebalancer(context.Background()))
}
