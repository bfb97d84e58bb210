package transfer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange/exchangetest"
	"github.com/assist-by/fundbot/internal/wallet"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newPlanner(gw *exchangetest.Gateway) *Planner {
	log := quietLog()
	return NewPlanner(gw, wallet.NewAggregator(gw, log), log, WithStepDelay(0))
}

func TestRequirements(t *testing.T) {
	p := newPlanner(exchangetest.New())

	tests := []struct {
		name     string
		strategy domain.StrategyType
		want     []Requirement
	}{
		{
			name:     "short-funding-capture",
			strategy: domain.ShortFundingCapture,
			want: []Requirement{
				{Wallet: domain.SpotWallet, Asset: "USDT", Amount: 500 * 1.001},
				{Wallet: domain.FuturesWallet, Asset: "USDT", Amount: 500.0/5*1.001 + 500*0.0014},
			},
		},
		{
			name:     "long-funding-capture",
			strategy: domain.LongFundingCapture,
			want: []Requirement{
				{Wallet: domain.SpotWallet, Asset: "ETH", Amount: 500.0 / 2000 * 1.001},
				{Wallet: domain.FuturesWallet, Asset: "USDT", Amount: 500.0/5*1.001 + 500*0.0014},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Requirements(tt.strategy, "ETHUSDT", 1000, 5, 2000)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Wallet, got[i].Wallet)
				assert.Equal(t, tt.want[i].Asset, got[i].Asset)
				assert.InDelta(t, tt.want[i].Amount, got[i].Amount, 1e-9)
			}
		})
	}

	_, err := p.Requirements("unknown", "ETHUSDT", 1000, 5, 2000)
	assert.Error(t, err)
	_, err = p.Requirements(domain.ShortFundingCapture, "ETHUSDT", 1000, 0, 2000)
	assert.Error(t, err)
}

func TestPlan_StepsBoundedBySurplus(t *testing.T) {
	p := newPlanner(exchangetest.New())
	snap := domain.NewWalletSnapshot(map[domain.WalletType]map[string]domain.Balance{
		domain.SpotWallet:        {"USDT": {Asset: "USDT", Free: 300}},
		domain.FuturesWallet:     {"USDT": {Asset: "USDT", Free: 150}},
		domain.CrossMarginWallet: {"USDT": {Asset: "USDT", Free: 100}},
	}, nil, time.Now())

	reqs := []Requirement{
		{Wallet: domain.SpotWallet, Asset: "USDT", Amount: 400},
		{Wallet: domain.FuturesWallet, Asset: "USDT", Amount: 100},
	}
	plan := p.Plan(snap, reqs)

	// SPOT 부족 100: FUTURES 잉여 50 → CROSS_MARGIN 50
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, domain.FuturesWallet, plan.Steps[0].From)
	assert.InDelta(t, 50, plan.Steps[0].Amount, 1e-9)
	assert.Equal(t, domain.CrossMarginWallet, plan.Steps[1].From)
	assert.InDelta(t, 50, plan.Steps[1].Amount, 1e-9)
	assert.True(t, plan.Covered())

	for _, s := range plan.Steps {
		assert.LessOrEqual(t, s.Amount, snap.Free(s.From, s.Asset))
		assert.NotEmpty(t, s.Reason)
	}
}

func TestPlan_Shortfall(t *testing.T) {
	p := newPlanner(exchangetest.New())
	snap := domain.NewWalletSnapshot(map[domain.WalletType]map[string]domain.Balance{
		domain.SpotWallet:           {"USDT": {Asset: "USDT", Free: 10}},
		domain.IsolatedMarginWallet: {"USDT": {Asset: "USDT", Free: 1000}},
	}, nil, time.Now())

	plan := p.Plan(snap, []Requirement{{Wallet: domain.FuturesWallet, Asset: "USDT", Amount: 50}})

	// 격리 마진은 원천에서 제외
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, domain.SpotWallet, plan.Steps[0].From)
	require.Len(t, plan.Shortfalls, 1)
	assert.InDelta(t, 40, plan.Shortfalls[0].Amount, 1e-9)
	assert.False(t, plan.Covered())
}

func TestRun_DryRunDoesNotTransfer(t *testing.T) {
	gw := exchangetest.New()
	gw.SetBalance(domain.SpotWallet, "USDT", 1000)

	res, err := newPlanner(gw).Run(context.Background(), domain.ShortFundingCapture, "BTCUSDT", 1000, 5, 40000, true)
	require.NoError(t, err)

	require.Len(t, res.Plan.Steps, 1)
	assert.Empty(t, res.Executions)
	assert.True(t, res.Summary.DryRun)
	assert.Equal(t, 0, gw.CallCount("Transfer"))
}

func TestRun_ExecutesSequentiallyWithoutRollback(t *testing.T) {
	gw := exchangetest.New()
	gw.SetBalance(domain.SpotWallet, "USDT", 400)
	gw.SetBalance(domain.FuturesWallet, "USDT", 200)
	gw.SetBalance(domain.CrossMarginWallet, "USDT", 200)

	p := newPlanner(gw)
	res, err := p.Run(context.Background(), domain.ShortFundingCapture, "BTCUSDT", 1000, 5, 40000, false)
	require.NoError(t, err)

	// SPOT 필요 500.5 → FUTURES 잉여 99.2 + CROSS_MARGIN 1.3
	require.Len(t, res.Executions, 2)
	for _, e := range res.Executions {
		assert.True(t, e.Success, e.Error)
	}
	assert.InDelta(t, 500.5, gw.Balance(domain.SpotWallet, "USDT"), 1e-6)
	assert.InDelta(t, 100.8, gw.Balance(domain.FuturesWallet, "USDT"), 1e-6)
	assert.InDelta(t, 100.8, res.Snapshot.Free(domain.FuturesWallet, "USDT")+res.Plan.NetFlow(domain.FuturesWallet, "USDT"), 1e-6)
	assert.Equal(t, 2, res.Summary.Succeeded)
}

func TestExecute_FailureRecordedPerStep(t *testing.T) {
	gw := exchangetest.New()
	gw.TransferErr = errors.New("<APIError> code=-5002, msg=insufficient balance")

	plan := &Plan{Steps: []Step{
		{Asset: "USDT", Amount: 1, From: domain.SpotWallet, To: domain.FuturesWallet},
		{Asset: "USDT", Amount: 2, From: domain.CrossMarginWallet, To: domain.FuturesWallet},
	}}
	results := newPlanner(gw).Execute(context.Background(), plan)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, 2, gw.CallCount("Transfer"))
}
