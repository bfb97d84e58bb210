package rebalance

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/notification"
	"github.com/assist-by/fundbot/internal/opportunity"
	"github.com/assist-by/fundbot/internal/position"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeOpportunities struct {
	snapshots []domain.FundingSnapshot
	err       error
}

func (f *fakeOpportunities) Opportunities(ctx context.Context) ([]domain.Opportunity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return opportunity.NewScorer(opportunity.DefaultThresholds()).Score(f.snapshots), nil
}

func (f *fakeOpportunities) FundingRate(ctx context.Context, symbol string) (float64, bool, error) {
	for _, s := range f.snapshots {
		if s.Symbol == symbol {
			return s.FundingRate, true, nil
		}
	}
	return 0, false, nil
}

// fakeManager는 레지스트리만 갱신하는 포지션 매니저입니다
type fakeManager struct {
	mu        sync.Mutex
	registry  *position.Registry
	closeErr  error
	launchRes *position.LaunchResult
	closed    []string
	launched  []domain.LaunchRequest
}

func (m *fakeManager) Launch(ctx context.Context, req domain.LaunchRequest) (*position.LaunchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.launched = append(m.launched, req)
	if m.launchRes != nil {
		return m.launchRes, nil
	}
	p := domain.ManagedPosition{
		ID:           domain.PositionID(req.Symbol, req.StrategyType),
		Symbol:       req.Symbol,
		StrategyType: req.StrategyType,
		Investment:   req.Investment,
		Leverage:     req.Leverage,
		AutoManaged:  req.AutoManaged,
		Status:       domain.StatusActive,
	}
	m.registry.InsertIfAbsent(p)
	return &position.LaunchResult{Position: &p}, nil
}

func (m *fakeManager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, id)
	if m.closeErr != nil {
		return m.closeErr
	}
	m.registry.Remove(id)
	return nil
}

func (m *fakeManager) Positions() []domain.ManagedPosition {
	return m.registry.List()
}

type recordingNotifier struct {
	notification.Nop
	rebalances []notification.RebalanceInfo
}

func (n *recordingNotifier) SendRebalance(info notification.RebalanceInfo) error {
	n.rebalances = append(n.rebalances, info)
	return nil
}

type fixture struct {
	registry *position.Registry
	manager  *fakeManager
	opps     *fakeOpportunities
	notifier *recordingNotifier
	clock    time.Time
	r        *Rebalancer
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		registry: position.NewRegistry(),
		notifier: &recordingNotifier{},
		clock:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		opps: &fakeOpportunities{snapshots: []domain.FundingSnapshot{
			{Symbol: "ETHUSDT", FundingRate: 0.0004, QuoteVolume24h: 10_000_000},
			{Symbol: "BTCUSDT", FundingRate: 0.001, QuoteVolume24h: 10_000_000},
		}},
	}
	f.manager = &fakeManager{registry: f.registry}
	f.registry.InsertIfAbsent(domain.ManagedPosition{
		ID:           domain.PositionID("ETHUSDT", domain.ShortFundingCapture),
		Symbol:       "ETHUSDT",
		StrategyType: domain.ShortFundingCapture,
		Investment:   1000,
		Leverage:     3,
		AutoManaged:  true,
		Status:       domain.StatusActive,
	})
	f.r = NewRebalancer(cfg, f.opps, f.registry, f.manager, f.notifier, quietLog(),
		WithClock(func() time.Time { return f.clock }))
	return f
}

func enabled() Config {
	return Config{Enabled: true}
}

func TestExecute_JumpsToBetterOpportunity(t *testing.T) {
	f := newFixture(t, enabled())

	require.NoError(t, f.r.Execute(context.Background()))

	require.Equal(t, []string{"short-funding-capture:ETHUSDT"}, f.manager.closed)
	require.Len(t, f.manager.launched, 1)
	req := f.manager.launched[0]
	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Equal(t, domain.ShortFundingCapture, req.StrategyType)
	assert.Equal(t, 1000.0, req.Investment)
	assert.Equal(t, 3, req.Leverage)
	assert.True(t, req.AutoManaged)

	st := f.r.Status()
	assert.Equal(t, StateCooldown, st.State)
	assert.Equal(t, f.clock.Add(DefaultCooldown), st.CooldownUntil)
	require.NotNil(t, st.LastJump)
	assert.Equal(t, "BTCUSDT", st.LastJump.ToSymbol)
	assert.InDelta(t, 0.438, st.LastJump.FromAnnualized, 1e-9)
	assert.InDelta(t, 1.095, st.LastJump.ToAnnualized, 1e-9)

	require.Len(t, f.notifier.rebalances, 1)
	assert.True(t, f.notifier.rebalances[0].Success)
}

func TestExecute_JumpThreshold(t *testing.T) {
	tests := []struct {
		name     string
		bestRate float64
		wantJump bool
	}{
		{name: "1.25배 미만", bestRate: 0.00049, wantJump: false},
		{name: "1.25배 초과", bestRate: 0.00051, wantJump: true},
		{name: "현재보다 낮음", bestRate: 0.0003, wantJump: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, enabled())
			// ETH를 후보에서 빼서 BTC가 최선이 되게 함
			f.opps.snapshots = []domain.FundingSnapshot{
				{Symbol: "ETHUSDT", FundingRate: 0.0004, QuoteVolume24h: 10},
				{Symbol: "BTCUSDT", FundingRate: tt.bestRate, QuoteVolume24h: 10_000_000},
			}

			require.NoError(t, f.r.Execute(context.Background()))
			assert.Equal(t, tt.wantJump, len(f.manager.closed) == 1)
			if !tt.wantJump {
				assert.Equal(t, StateMonitoring, f.r.Status().State)
			}
		})
	}
}

func TestExecute_SameSymbolStays(t *testing.T) {
	f := newFixture(t, enabled())
	f.opps.snapshots = []domain.FundingSnapshot{
		{Symbol: "ETHUSDT", FundingRate: 0.004, QuoteVolume24h: 10_000_000},
	}

	require.NoError(t, f.r.Execute(context.Background()))
	assert.Empty(t, f.manager.closed)

	p, ok := f.registry.Get("short-funding-capture:ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, 0.004, p.CurrentFundingRate)
}

func TestExecute_NoSecondJumpWithinCooldown(t *testing.T) {
	f := newFixture(t, enabled())
	ctx := context.Background()

	require.NoError(t, f.r.Execute(ctx))
	require.Len(t, f.manager.closed, 1)

	// 새 포지션(BTC)보다 훨씬 좋은 기회가 나타나도 쿨다운 중에는 점프하지 않음
	f.opps.snapshots = append(f.opps.snapshots, domain.FundingSnapshot{
		Symbol: "SOLUSDT", FundingRate: 0.01, QuoteVolume24h: 10_000_000,
	})
	f.clock = f.clock.Add(11 * time.Hour)
	require.NoError(t, f.r.Execute(ctx))
	assert.Len(t, f.manager.closed, 1)
	assert.Equal(t, StateCooldown, f.r.Status().State)

	f.clock = f.clock.Add(2 * time.Hour)
	require.NoError(t, f.r.Execute(ctx))
	require.Len(t, f.manager.closed, 2)
	assert.Equal(t, "short-funding-capture:BTCUSDT", f.manager.closed[1])
	assert.Equal(t, StateCooldown, f.r.Status().State)
}

func TestExecute_ConcurrentTicksJumpOnce(t *testing.T) {
	f := newFixture(t, enabled())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.r.Execute(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, f.manager.closed, 1)
	assert.Len(t, f.manager.launched, 1)
}

func TestExecute_FailureReturnsToMonitoring(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *fakeManager)
	}{
		{
			name:  "청산 실패",
			setup: func(m *fakeManager) { m.closeErr = errors.New("reduce only rejected") },
		},
		{
			name: "진입 사전 검증 실패",
			setup: func(m *fakeManager) {
				m.launchRes = &position.LaunchResult{Kind: domain.KindInsufficientFunds, Error: "증거금 부족"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, enabled())
			tt.setup(f.manager)

			require.NoError(t, f.r.Execute(context.Background()))

			st := f.r.Status()
			assert.Equal(t, StateMonitoring, st.State)
			assert.True(t, st.CooldownUntil.IsZero())
			assert.Nil(t, st.LastJump)
			assert.NotEmpty(t, st.LastError)
			require.Len(t, f.notifier.rebalances, 1)
			assert.False(t, f.notifier.rebalances[0].Success)
		})
	}
}

func TestExecute_DisabledIsIdle(t *testing.T) {
	f := newFixture(t, Config{Enabled: false})

	require.NoError(t, f.r.Execute(context.Background()))
	assert.Equal(t, StateIdle, f.r.Status().State)
	assert.Empty(t, f.manager.closed)
}

func TestExecute_OpportunityErrorSurfaces(t *testing.T) {
	f := newFixture(t, enabled())
	f.opps.err = errors.New("timeout")

	assert.Error(t, f.r.Execute(context.Background()))
	assert.Empty(t, f.manager.closed)
}
