// Package app은 시작 시 한 번 구성되어 모든 컴포넌트가 공유하는 애플리케이션 상태를 정의합니다.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/fundbot/internal/config"
	"github.com/assist-by/fundbot/internal/conversion"
	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
	"github.com/assist-by/fundbot/internal/notification"
	"github.com/assist-by/fundbot/internal/opportunity"
	"github.com/assist-by/fundbot/internal/position"
	"github.com/assist-by/fundbot/internal/preflight"
	"github.com/assist-by/fundbot/internal/rebalance"
	"github.com/assist-by/fundbot/internal/rules"
	"github.com/assist-by/fundbot/internal/scheduler"
	"github.com/assist-by/fundbot/internal/transfer"
	"github.com/assist-by/fundbot/internal/wallet"
)

// State는 레지스트리, 캐시, 리밸런서 상태를 소유합니다.
// 패키지 수준 전역 상태 없이 이 값을 참조로 전달합니다.
type State struct {
	Config   *config.Config
	Log      *logrus.Logger
	Gateway  exchange.Gateway
	Notifier notification.Notifier

	Rules      *rules.Cache
	Wallets    *wallet.Aggregator
	Resolver   *conversion.Resolver
	Converter  *conversion.Executor
	Feed       *opportunity.Feed
	Capital    *preflight.CapitalAnalyzer
	Transfer   *transfer.Planner
	Margin     *preflight.MarginValidator
	Registry   *position.Registry
	Launcher   *position.Launcher
	Rebalancer *rebalance.Rebalancer

	mu        sync.Mutex
	scheduler *scheduler.Scheduler
	closed    bool
}

// New는 설정과 게이트웨이로 전체 컴포넌트 그래프를 구성합니다
func New(cfg *config.Config, log *logrus.Logger, gateway exchange.Gateway, notifier notification.Notifier) *State {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	entry := logrus.NewEntry(log)

	s := &State{
		Config:   cfg,
		Log:      log,
		Gateway:  gateway,
		Notifier: notifier,
		Registry: position.NewRegistry(),
	}

	s.Rules = rules.NewCache(gateway, rules.WithTTL(cfg.Rules.FiltersTTL, cfg.Rules.BracketTTL))
	s.Wallets = wallet.NewAggregator(gateway, entry)
	s.Resolver = conversion.NewResolver(domain.QuoteAsset)
	s.Converter = conversion.NewExecutor(gateway, s.Rules, s.Resolver, entry,
		conversion.WithWindow(cfg.Conversion.WindowSize, cfg.Conversion.WindowDelay))

	retry := exchange.DefaultRetryConfig()
	retry.MaxRetries = cfg.Opportunity.MaxRetries
	if cfg.Opportunity.RetryBaseDelay > 0 {
		retry.BaseDelay = cfg.Opportunity.RetryBaseDelay
	}
	s.Feed = opportunity.NewFeed(gateway, opportunity.NewScorer(opportunity.Thresholds{
		MinFundingRate: cfg.Opportunity.MinFundingRate,
		MinLiquidity:   cfg.Opportunity.MinLiquidity,
	}), cfg.Opportunity.RefreshInterval, opportunity.WithRetry(retry, entry))

	orderCostRate := cfg.Trading.TakerFeeRate + cfg.Trading.SlippageBps/10000
	s.Capital = preflight.NewCapitalAnalyzer(gateway, s.Wallets, s.Resolver, s.Converter, preflight.CapitalConfig{
		FeeBuffer:     cfg.Trading.FeeBuffer,
		Tolerance:     cfg.Trading.Tolerance,
		OrderCostRate: orderCostRate,
	}, entry)
	s.Transfer = transfer.NewPlanner(gateway, s.Wallets, entry,
		transfer.WithFeeBuffer(cfg.Trading.FeeBuffer),
		transfer.WithOrderCostRate(orderCostRate),
		transfer.WithStepDelay(cfg.Transfer.StepDelay))
	s.Margin = preflight.NewMarginValidator(gateway, s.Rules, preflight.MarginConfig{
		TakerFeeRate:         cfg.Trading.TakerFeeRate,
		SlippageBps:          cfg.Trading.SlippageBps,
		RoundUpToMinNotional: cfg.Trading.RoundUpToMinNotional,
	}, entry)

	s.Launcher = position.NewLauncher(position.Deps{
		Gateway:  gateway,
		Registry: s.Registry,
		Rules:    s.Rules,
		Capital:  s.Capital,
		Transfer: s.Transfer,
		Margin:   s.Margin,
		Funding:  s.Feed,
		Notifier: notifier,
		Log:      entry,
	})

	s.Rebalancer = rebalance.NewRebalancer(rebalance.Config{
		Enabled:         cfg.Rebalance.Enabled,
		JumpMultiplier:  cfg.Rebalance.JumpMultiplier,
		Cooldown:        cfg.Rebalance.Cooldown,
		AutoConvert:     cfg.Trading.AutoConvert,
		RetainBuffer:    cfg.Trading.RetainBuffer,
		MinConvertValue: cfg.Trading.MinConvertValue,
	}, s.Feed, s.Registry, s.Launcher, notifier, entry)

	return s
}

// LaunchRequest는 설정의 거래 기본값을 채운 진입 요청을 만듭니다
func (s *State) LaunchRequest(symbol string, strategy domain.StrategyType, investment float64, leverage int) domain.LaunchRequest {
	if leverage <= 0 {
		leverage = s.Config.Trading.Leverage
	}
	return domain.LaunchRequest{
		Symbol:          symbol,
		StrategyType:    strategy,
		Investment:      investment,
		Leverage:        leverage,
		AutoConvert:     s.Config.Trading.AutoConvert,
		RetainBuffer:    s.Config.Trading.RetainBuffer,
		MinConvertValue: s.Config.Trading.MinConvertValue,
	}
}

// RunRebalancer는 ctx가 취소되거나 Close가 호출될 때까지 리밸런서를 주기 실행합니다
func (s *State) RunRebalancer(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("이미 종료된 애플리케이션 상태입니다")
	}
	s.scheduler = scheduler.NewScheduler(s.Config.Rebalance.Interval, s.Rebalancer, logrus.NewEntry(s.Log))
	sched := s.scheduler
	s.mu.Unlock()

	return sched.Start(ctx)
}

// Close는 스케줄러를 멈추고 캐시를 비웁니다. 여러 번 호출해도 안전합니다.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.Rules.Purge()
	s.Feed.Refresh()

	if n := s.Registry.Len(); n > 0 {
		s.Log.WithField("positions", n).Warn("열린 포지션이 남아 있는 상태로 종료합니다")
	}
}
