// Package transfer는 전략 레그별 필요 자금을 계산하고 지갑 간 이체 계획을 세워 실행합니다.
package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

const (
	DefaultFeeBuffer = 0.001
	DefaultStepDelay = time.Second
	// DefaultOrderCostRate는 선물 명목 금액 대비 테이커 수수료(0.04%)와 슬리피지 예비금(10bps) 합입니다
	DefaultOrderCostRate = 0.0014

	// 이 값 미만의 부족분/이체는 무시합니다
	dustAmount = 1e-8
)

// sourceOrder는 잉여 자금을 찾는 지갑 우선순위입니다.
// 격리 마진은 페어별로 묶여 있어 이체 원천에서 제외합니다.
var sourceOrder = []domain.WalletType{domain.SpotWallet, domain.FuturesWallet, domain.CrossMarginWallet}

// Requirement는 한 레그가 특정 지갑에 보유해야 하는 자산 수량입니다
type Requirement struct {
	Wallet domain.WalletType
	Asset  string
	Amount float64
}

// Step은 지갑 간 이체 한 건입니다
type Step struct {
	Asset  string
	Amount float64
	From   domain.WalletType
	To     domain.WalletType
	Reason string
}

// Shortfall은 계획 후에도 남는 부족분입니다
type Shortfall struct {
	Wallet domain.WalletType
	Asset  string
	Amount float64
}

// Plan은 순서가 있는 이체 계획입니다
type Plan struct {
	Requirements []Requirement
	Steps        []Step
	Shortfalls   []Shortfall
}

// Covered는 모든 부족분이 이체로 충당되는지 반환합니다
func (p *Plan) Covered() bool {
	return len(p.Shortfalls) == 0
}

// StepResult는 이체 한 건의 실행 결과입니다
type StepResult struct {
	Step          Step
	Success       bool
	TransactionID int64
	Error         string
}

// Summary는 계획 실행 요약입니다
type Summary struct {
	TotalSteps int
	Succeeded  int
	Failed     int
	DryRun     bool
	Message    string
}

// NetFlow는 계획된 이체로 인한 지갑/자산의 순유입량을 반환합니다
func (p *Plan) NetFlow(wallet domain.WalletType, asset string) float64 {
	var net float64
	for _, s := range p.Steps {
		if s.Asset != asset {
			continue
		}
		if s.To == wallet {
			net += s.Amount
		}
		if s.From == wallet {
			net -= s.Amount
		}
	}
	return net
}

// Result는 계획과 실행 결과를 묶은 반환값입니다
type Result struct {
	Snapshot   *domain.WalletSnapshot // 계획 수립 기준 스냅샷
	Plan       *Plan
	Executions []StepResult
	Summary    Summary
}

// SnapshotSource는 지갑 스냅샷 제공자입니다 (wallet.Aggregator가 구현)
type SnapshotSource interface {
	Snapshot(ctx context.Context) *domain.WalletSnapshot
}

// Planner는 레그별 필요 자금 계산과 이체 계획/실행을 담당합니다
type Planner struct {
	gateway   exchange.Gateway
	wallets   SnapshotSource
	log       *logrus.Entry
	feeBuffer float64
	costRate  float64
	stepDelay time.Duration
}

// Option은 플래너 생성 옵션입니다
type Option func(*Planner)

// WithFeeBuffer는 필요 자금에 더할 수수료 버퍼 비율을 설정합니다
func WithFeeBuffer(buffer float64) Option {
	return func(p *Planner) {
		p.feeBuffer = buffer
	}
}

// WithOrderCostRate는 선물 명목 금액 대비 주문 비용 비율을 설정합니다
func WithOrderCostRate(rate float64) Option {
	return func(p *Planner) {
		p.costRate = rate
	}
}

// WithStepDelay는 이체 사이 고정 지연을 설정합니다
func WithStepDelay(d time.Duration) Option {
	return func(p *Planner) {
		p.stepDelay = d
	}
}

// NewPlanner는 새로운 이체 플래너를 생성합니다
func NewPlanner(gateway exchange.Gateway, wallets SnapshotSource, log *logrus.Entry, opts ...Option) *Planner {
	p := &Planner{
		gateway:   gateway,
		wallets:   wallets,
		log:       log.WithField("component", "transfer_planner"),
		feeBuffer: DefaultFeeBuffer,
		costRate:  DefaultOrderCostRate,
		stepDelay: DefaultStepDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Requirements는 투자금을 현물 레그와 선물 레그 명목 금액으로 절반씩 나눠 각 지갑의 필요 수량을 계산합니다.
//   - short-funding-capture: SPOT USDT = I/2 × (1+버퍼)
//   - long-funding-capture: SPOT 기초자산 = I/2 ÷ 가격 × (1+버퍼)
//   - 공통: FUTURES USDT = I/2 ÷ L × (1+버퍼) + I/2 × 주문 비용 비율
func (p *Planner) Requirements(strategy domain.StrategyType, symbol string, investment float64, leverage int, markPrice float64) ([]Requirement, error) {
	if !strategy.IsValid() {
		return nil, fmt.Errorf("지원하지 않는 전략 유형: %s", strategy)
	}
	if investment <= 0 {
		return nil, fmt.Errorf("투자금은 0보다 커야 합니다: %.2f", investment)
	}
	if leverage < 1 {
		return nil, fmt.Errorf("레버리지는 1 이상이어야 합니다: %d", leverage)
	}

	leg := investment / 2
	factor := 1 + p.feeBuffer
	margin := Requirement{
		Wallet: domain.FuturesWallet,
		Asset:  domain.QuoteAsset,
		Amount: leg/float64(leverage)*factor + leg*p.costRate,
	}

	if strategy == domain.LongFundingCapture {
		if markPrice <= 0 {
			return nil, fmt.Errorf("유효하지 않은 가격: %.8f", markPrice)
		}
		return []Requirement{
			{Wallet: domain.SpotWallet, Asset: domain.BaseAsset(symbol), Amount: leg / markPrice * factor},
			margin,
		}, nil
	}

	return []Requirement{
		{Wallet: domain.SpotWallet, Asset: domain.QuoteAsset, Amount: leg * factor},
		margin,
	}, nil
}

// Plan은 스냅샷 기준으로 부족분을 다른 지갑의 잉여분에서 옮기는 계획을 세웁니다.
// 잉여분은 해당 지갑의 가용 잔고에서 그 지갑 자체의 요구량과 이미 계획된 출금을 뺀 값입니다.
func (p *Planner) Plan(snapshot *domain.WalletSnapshot, reqs []Requirement) *Plan {
	plan := &Plan{Requirements: reqs}

	// 지갑/자산별 요구량
	required := make(map[domain.WalletType]map[string]float64)
	for _, r := range reqs {
		if required[r.Wallet] == nil {
			required[r.Wallet] = make(map[string]float64)
		}
		required[r.Wallet][r.Asset] += r.Amount
	}

	// 계획된 이체에 따른 잔고 변화
	delta := make(map[domain.WalletType]map[string]float64)
	move := func(w domain.WalletType, asset string, amount float64) {
		if delta[w] == nil {
			delta[w] = make(map[string]float64)
		}
		delta[w][asset] += amount
	}

	for _, r := range reqs {
		have := snapshot.Free(r.Wallet, r.Asset) + delta[r.Wallet][r.Asset]
		deficit := r.Amount - have
		if deficit <= dustAmount {
			continue
		}

		for _, src := range sourceOrder {
			if src == r.Wallet {
				continue
			}
			surplus := snapshot.Free(src, r.Asset) + delta[src][r.Asset] - required[src][r.Asset]
			if surplus <= dustAmount {
				continue
			}

			amount := deficit
			if amount > surplus {
				amount = surplus
			}
			plan.Steps = append(plan.Steps, Step{
				Asset:  r.Asset,
				Amount: amount,
				From:   src,
				To:     r.Wallet,
				Reason: fmt.Sprintf("%s 지갑 %s 부족분 %.8f 충당 (%s 잉여 %.8f)", r.Wallet, r.Asset, deficit, src, surplus),
			})
			move(src, r.Asset, -amount)
			move(r.Wallet, r.Asset, amount)
			deficit -= amount
			if deficit <= dustAmount {
				break
			}
		}

		if deficit > dustAmount {
			plan.Shortfalls = append(plan.Shortfalls, Shortfall{Wallet: r.Wallet, Asset: r.Asset, Amount: deficit})
		}
	}

	return plan
}

// Execute는 계획된 이체를 순서대로 실행합니다.
// 이체 사이에는 고정 지연을 두며 실패한 이체는 이전 성공 이체를 되돌리지 않습니다.
func (p *Planner) Execute(ctx context.Context, plan *Plan) []StepResult {
	results := make([]StepResult, 0, len(plan.Steps))
	if len(plan.Steps) == 0 {
		return results
	}

	limit := rate.Inf
	if p.stepDelay > 0 {
		limit = rate.Every(p.stepDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, step := range plan.Steps {
		if err := limiter.Wait(ctx); err != nil {
			for _, rest := range plan.Steps[i:] {
				results = append(results, StepResult{Step: rest, Error: fmt.Sprintf("이체 취소: %v", err)})
			}
			break
		}

		log := p.log.WithFields(logrus.Fields{
			"asset":  step.Asset,
			"amount": step.Amount,
			"from":   step.From,
			"to":     step.To,
		})

		resp, err := p.gateway.Transfer(ctx, domain.TransferRequest{
			Asset:  step.Asset,
			Amount: step.Amount,
			From:   step.From,
			To:     step.To,
		})
		if err != nil {
			apiErr := exchange.Classify(err)
			log.WithError(apiErr).Error("지갑 이체 실패")
			results = append(results, StepResult{Step: step, Error: apiErr.Error()})
			continue
		}

		log.WithField("tran_id", resp.TransactionID).Info("지갑 이체 완료")
		results = append(results, StepResult{Step: step, Success: true, TransactionID: resp.TransactionID})
	}

	return results
}

// Run은 현재 스냅샷으로 계획을 세우고 dryRun이 아니면 실행합니다
func (p *Planner) Run(ctx context.Context, strategy domain.StrategyType, symbol string, investment float64, leverage int, markPrice float64, dryRun bool) (*Result, error) {
	reqs, err := p.Requirements(strategy, symbol, investment, leverage, markPrice)
	if err != nil {
		return nil, err
	}

	snapshot := p.wallets.Snapshot(ctx)
	if snapshot.Partial() {
		p.log.WithField("errors", len(snapshot.Errors)).Warn("일부 지갑 조회 실패 상태로 이체 계획 수립")
	}

	plan := p.Plan(snapshot, reqs)
	result := &Result{Snapshot: snapshot, Plan: plan}

	if !dryRun {
		result.Executions = p.Execute(ctx, plan)
	}
	result.Summary = summarize(plan, result.Executions, dryRun)
	return result, nil
}

func summarize(plan *Plan, execs []StepResult, dryRun bool) Summary {
	s := Summary{TotalSteps: len(plan.Steps), DryRun: dryRun}
	for _, e := range execs {
		if e.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}

	var parts []string
	switch {
	case len(plan.Steps) == 0:
		parts = append(parts, "이체 불필요")
	case dryRun:
		parts = append(parts, fmt.Sprintf("이체 %d건 계획 (dry run)", s.TotalSteps))
	default:
		parts = append(parts, fmt.Sprintf("이체 %d건 중 %d건 성공, %d건 실패", s.TotalSteps, s.Succeeded, s.Failed))
	}
	for _, sf := range plan.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s %s %.8f 부족", sf.Wallet, sf.Asset, sf.Amount))
	}
	s.Message = strings.Join(parts, "; ")
	return s
}
