// Package rebalance는 자동 관리 포지션을 주기적으로 재평가해
// 더 나은 펀딩비 기회로 옮겨 타는 리밸런서를 제공합니다.
package rebalance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/notification"
	"github.com/assist-by/fundbot/internal/opportunity"
	"github.com/assist-by/fundbot/internal/position"
)

const (
	DefaultJumpMultiplier = 1.25
	DefaultCooldown       = 12 * time.Hour
)

// State는 리밸런서 상태입니다
type State string

const (
	StateIdle        State = "IDLE"
	StateMonitoring  State = "MONITORING"
	StateRebalancing State = "REBALANCING"
	StateCooldown    State = "COOLDOWN"
)

// OpportunitySource는 점수화된 기회와 심볼별 현재 펀딩비 제공자입니다 (opportunity.Feed가 구현)
type OpportunitySource interface {
	Opportunities(ctx context.Context) ([]domain.Opportunity, error)
	FundingRate(ctx context.Context, symbol string) (float64, bool, error)
}

// PositionSource는 리밸런싱 대상 포지션 저장소입니다 (position.Registry가 구현)
type PositionSource interface {
	AutoManaged() []domain.ManagedPosition
	Update(id string, fn func(*domain.ManagedPosition)) error
}

// Config는 리밸런서 설정입니다
type Config struct {
	Enabled        bool
	JumpMultiplier float64
	Cooldown       time.Duration

	// 새 포지션 진입 요청에 그대로 전달됩니다
	AutoConvert     bool
	RetainBuffer    float64
	MinConvertValue float64
}

// Jump는 성공한 리밸런싱 기록입니다
type Jump struct {
	FromID         string
	FromSymbol     string
	ToSymbol       string
	FromAnnualized float64
	ToAnnualized   float64
	At             time.Time
}

// Status는 리밸런서 상태 조회 결과입니다
type Status struct {
	State         State
	Enabled       bool
	CooldownUntil time.Time
	LastTick      time.Time
	LastJump      *Jump
	LastError     string
}

// Rebalancer는 scheduler.Task를 구현하며 틱마다 최대 한 번 포지션을 옮깁니다.
// 틱은 tickMu로 직렬화되므로 동시에 호출돼도 쿨다운 안에 두 번 점프하지 않습니다.
type Rebalancer struct {
	cfg       Config
	opps      OpportunitySource
	positions PositionSource
	manager   position.Manager
	notifier  notification.Notifier
	log       *logrus.Entry
	now       func() time.Time

	tickMu sync.Mutex

	mu            sync.RWMutex
	state         State
	cooldownUntil time.Time
	lastTick      time.Time
	lastJump      *Jump
	lastError     string
}

// Option은 Rebalancer 옵션입니다
type Option func(*Rebalancer)

// WithClock은 현재 시각 함수를 교체합니다
func WithClock(now func() time.Time) Option {
	return func(r *Rebalancer) { r.now = now }
}

// NewRebalancer는 새로운 리밸런서를 생성합니다
func NewRebalancer(cfg Config, opps OpportunitySource, positions PositionSource, manager position.Manager, notifier notification.Notifier, log *logrus.Entry, opts ...Option) *Rebalancer {
	if cfg.JumpMultiplier <= 1 {
		cfg.JumpMultiplier = DefaultJumpMultiplier
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	r := &Rebalancer{
		cfg:       cfg,
		opps:      opps,
		positions: positions,
		manager:   manager,
		notifier:  notifier,
		log:       log.WithField("component", "rebalancer"),
		now:       time.Now,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status는 현재 상태 복사본을 반환합니다
func (r *Rebalancer) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Status{
		State:         r.state,
		Enabled:       r.cfg.Enabled,
		CooldownUntil: r.cooldownUntil,
		LastTick:      r.lastTick,
		LastError:     r.lastError,
	}
	if r.lastJump != nil {
		j := *r.lastJump
		s.LastJump = &j
	}
	return s
}

func (r *Rebalancer) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Execute는 한 번의 리밸런싱 틱을 수행합니다.
// 기회 조회 실패만 에러로 반환하고 점프 실패는 기록 후 Monitoring으로 돌아갑니다.
func (r *Rebalancer) Execute(ctx context.Context) error {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	now := r.now()
	r.mu.Lock()
	r.lastTick = now
	if !r.cfg.Enabled {
		r.state = StateIdle
		r.mu.Unlock()
		return nil
	}
	if r.state == StateCooldown {
		if now.Before(r.cooldownUntil) {
			r.mu.Unlock()
			return nil
		}
		r.log.Info("쿨다운 종료, 모니터링 재개")
	}
	r.state = StateMonitoring
	r.mu.Unlock()

	positions := r.positions.AutoManaged()
	if len(positions) == 0 {
		return nil
	}

	opps, err := r.opps.Opportunities(ctx)
	if err != nil {
		return fmt.Errorf("기회 목록 조회 실패: %w", err)
	}

	for _, pos := range positions {
		current := r.refreshFundingRate(ctx, pos)
		currentAnnual := domain.AnnualizedRate(current)

		best, ok := opportunity.Best(opps, pos.StrategyType)
		if !ok || best.Symbol == pos.Symbol {
			continue
		}
		if best.AnnualizedRate <= currentAnnual*r.cfg.JumpMultiplier {
			continue
		}

		r.jump(ctx, pos, currentAnnual, best)
		// 틱당 최대 한 번
		return nil
	}
	return nil
}

// refreshFundingRate는 포지션의 현재 펀딩비를 갱신하고 반환합니다.
// 조회에 실패하면 저장된 값을 사용합니다.
func (r *Rebalancer) refreshFundingRate(ctx context.Context, pos domain.ManagedPosition) float64 {
	rate, ok, err := r.opps.FundingRate(ctx, pos.Symbol)
	if err != nil || !ok {
		if err != nil {
			r.log.WithError(err).WithField("symbol", pos.Symbol).Warn("펀딩비 조회 실패, 저장된 값 사용")
		}
		return pos.CurrentFundingRate
	}
	_ = r.positions.Update(pos.ID, func(p *domain.ManagedPosition) { p.CurrentFundingRate = rate })
	return rate
}

func (r *Rebalancer) jump(ctx context.Context, pos domain.ManagedPosition, currentAnnual float64, best domain.Opportunity) {
	r.setState(StateRebalancing)
	log := r.log.WithFields(logrus.Fields{
		"from":            pos.Symbol,
		"to":              best.Symbol,
		"from_annualized": currentAnnual,
		"to_annualized":   best.AnnualizedRate,
	})
	log.Info("리밸런싱 시작")

	info := notification.RebalanceInfo{
		FromSymbol:     pos.Symbol,
		ToSymbol:       best.Symbol,
		FromAnnualized: currentAnnual,
		ToAnnualized:   best.AnnualizedRate,
	}

	fail := func(reason string) {
		log.Error(reason)
		r.mu.Lock()
		r.state = StateMonitoring
		r.lastError = reason
		r.mu.Unlock()

		info.Reason = reason
		if err := r.notifier.SendRebalance(info); err != nil {
			log.WithError(err).Warn("리밸런싱 알림 전송 실패")
		}
	}

	if err := r.manager.Close(ctx, pos.ID); err != nil {
		fail(fmt.Sprintf("기존 포지션 청산 실패: %v", err))
		return
	}

	res, err := r.manager.Launch(ctx, domain.LaunchRequest{
		Symbol:          best.Symbol,
		StrategyType:    best.Direction,
		Investment:      pos.Investment,
		Leverage:        pos.Leverage,
		AutoConvert:     r.cfg.AutoConvert,
		RetainBuffer:    r.cfg.RetainBuffer,
		MinConvertValue: r.cfg.MinConvertValue,
		AutoManaged:     true,
	})
	if err != nil {
		fail(fmt.Sprintf("새 포지션 진입 실패: %v", err))
		return
	}
	if !res.OK() {
		fail(fmt.Sprintf("새 포지션 사전 검증 실패 [%s]: %s", res.Kind, res.Error))
		return
	}

	now := r.now()
	r.mu.Lock()
	r.state = StateCooldown
	r.cooldownUntil = now.Add(r.cfg.Cooldown)
	r.lastError = ""
	r.lastJump = &Jump{
		FromID:         pos.ID,
		FromSymbol:     pos.Symbol,
		ToSymbol:       best.Symbol,
		FromAnnualized: currentAnnual,
		ToAnnualized:   best.AnnualizedRate,
		At:             now,
	}
	r.mu.Unlock()

	log.WithField("cooldown_until", now.Add(r.cfg.Cooldown)).Info("리밸런싱 완료")

	info.Success = true
	info.Reason = fmt.Sprintf("새 기회가 현재 연 수익률의 %.2f배 기준을 초과", r.cfg.JumpMultiplier)
	if err := r.notifier.SendRebalance(info); err != nil {
		log.WithError(err).Warn("리밸런싱 알림 전송 실패")
	}
}
