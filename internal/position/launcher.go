package position

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
	"github.com/assist-by/fundbot/internal/notification"
	"github.com/assist-by/fundbot/internal/preflight"
	"github.com/assist-by/fundbot/internal/transfer"
)

// CapitalChecker는 자본 충분성 분석기입니다 (preflight.CapitalAnalyzer가 구현)
type CapitalChecker interface {
	Analyze(ctx context.Context, req domain.LaunchRequest) (*preflight.CapitalReport, error)
}

// TransferRunner는 지갑 이체 계획/실행기입니다 (transfer.Planner가 구현)
type TransferRunner interface {
	Run(ctx context.Context, strategy domain.StrategyType, symbol string, investment float64, leverage int, markPrice float64, dryRun bool) (*transfer.Result, error)
}

// MarginChecker는 선물 레그 검증기입니다 (preflight.MarginValidator가 구현)
type MarginChecker interface {
	Validate(ctx context.Context, req preflight.MarginRequest) (*preflight.Diagnostic, error)
}

// FundingSource는 심볼의 현재 펀딩비 조회 기능입니다 (opportunity.Feed가 구현)
type FundingSource interface {
	FundingRate(ctx context.Context, symbol string) (float64, bool, error)
}

// Launcher는 사전 검증, 이체, 두 레그 주문으로 포지션을 진입/청산합니다
type Launcher struct {
	gateway  exchange.Gateway
	registry *Registry
	rules    preflight.RulesSource
	capital  CapitalChecker
	transfer TransferRunner
	margin   MarginChecker
	funding  FundingSource
	notifier notification.Notifier
	log      *logrus.Entry
	now      func() time.Time
}

var _ Manager = (*Launcher)(nil)

// Deps는 Launcher 생성에 필요한 의존성입니다
type Deps struct {
	Gateway  exchange.Gateway
	Registry *Registry
	Rules    preflight.RulesSource
	Capital  CapitalChecker
	Transfer TransferRunner
	Margin   MarginChecker
	Funding  FundingSource
	Notifier notification.Notifier
	Log      *logrus.Entry
}

// NewLauncher는 새로운 포지션 런처를 생성합니다
func NewLauncher(d Deps) *Launcher {
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Launcher{
		gateway:  d.Gateway,
		registry: d.Registry,
		rules:    d.Rules,
		capital:  d.Capital,
		transfer: d.Transfer,
		margin:   d.Margin,
		funding:  d.Funding,
		notifier: notifier,
		log:      d.Log.WithField("component", "position_launcher"),
		now:      time.Now,
	}
}

// Positions는 현재 관리 중인 포지션 목록을 반환합니다
func (l *Launcher) Positions() []domain.ManagedPosition {
	return l.registry.List()
}

// Launch는 포지션 ID를 예약한 뒤 자본 분석 → 이체 → 증거금 검증 → 레버리지 설정 → 현물 주문 → 선물 주문 순으로 진입합니다.
// 예약은 진입이 끝나지 않으면(dry run 포함) 해제됩니다.
func (l *Launcher) Launch(ctx context.Context, req domain.LaunchRequest) (*LaunchResult, error) {
	res := &LaunchResult{DryRun: req.DryRun}

	if req.Symbol == "" {
		return rejected(res, domain.KindValidation, "심볼이 비어 있습니다"), nil
	}
	if !req.StrategyType.IsValid() {
		return rejected(res, domain.KindValidation, fmt.Sprintf("지원하지 않는 전략 유형: %s", req.StrategyType)), nil
	}

	pos := reservation(req)
	if !l.registry.InsertIfAbsent(pos) {
		return nil, NewPositionError(req.Symbol, "reserve", ErrPositionExists)
	}
	committed := false
	defer func() {
		if !committed {
			l.registry.Remove(pos.ID)
		}
	}()

	log := l.log.WithFields(logrus.Fields{
		"position_id": pos.ID,
		"investment":  req.Investment,
		"leverage":    req.Leverage,
		"dry_run":     req.DryRun,
	})

	// 1. 자본 충분성
	capital, err := l.capital.Analyze(ctx, req)
	if err != nil {
		return nil, NewPositionError(req.Symbol, "capital_preflight", err)
	}
	res.Capital = capital
	if !capital.OK() && !(req.DryRun && capital.Status == preflight.CapitalPlanned) {
		kind, msg := capital.Kind, capital.Error
		if kind == domain.KindNone {
			kind = domain.KindInsufficientFunds
			msg = fmt.Sprintf("%s %.8f 부족 (autoConvert 꺼짐)", capital.Asset, capital.Deficit)
		}
		log.WithField("kind", kind).Warn("자본 사전 검증 실패")
		return rejected(res, kind, msg), nil
	}

	markPrice, err := l.gateway.GetMarkPrice(ctx, req.Symbol)
	if err != nil {
		return nil, NewPositionError(req.Symbol, "get_mark_price", exchange.Classify(err))
	}

	// 2. 지갑 이체
	tr, err := l.transfer.Run(ctx, req.StrategyType, req.Symbol, req.Investment, req.Leverage, markPrice, req.DryRun)
	if err != nil {
		return nil, NewPositionError(req.Symbol, "transfer", err)
	}
	res.Transfer = tr
	if !req.DryRun && (!tr.Plan.Covered() || tr.Summary.Failed > 0) {
		log.WithField("summary", tr.Summary.Message).Warn("지갑 이체로 자금 배치 실패")
		return rejected(res, domain.KindInsufficientFunds, tr.Summary.Message), nil
	}

	// 3. 선물 레그 검증
	mreq := preflight.MarginRequest{
		Symbol:     req.Symbol,
		Side:       req.StrategyType.FuturesSide(),
		Investment: req.LegInvestment(),
		Leverage:   req.Leverage,
	}
	if req.DryRun {
		// 실행되지 않은 이체를 반영한 예상 선물 잔고
		projected := tr.Snapshot.Free(domain.FuturesWallet, domain.QuoteAsset) + tr.Plan.NetFlow(domain.FuturesWallet, domain.QuoteAsset)
		mreq.AssumeAvailable = &projected
	}
	diag, err := l.margin.Validate(ctx, mreq)
	if err != nil {
		return nil, NewPositionError(req.Symbol, "margin_preflight", err)
	}
	res.Margin = diag
	if !diag.Valid {
		log.WithFields(logrus.Fields{
			"correlation_id": diag.CorrelationID,
			"kind":           diag.Kind,
		}).Warn("증거금 검증 실패")
		return rejected(res, diag.Kind, diag.Error), nil
	}

	if req.DryRun {
		log.Info("dry run 사전 검증 완료")
		return res, nil
	}

	// 4. 주문 실행
	if err := l.gateway.SetLeverage(ctx, req.Symbol, req.Leverage); err != nil {
		return nil, NewPositionError(req.Symbol, "set_leverage", exchange.Classify(err))
	}

	spotQty, err := l.hedgeQuantity(ctx, req, diag.Sizing.Quantity)
	if err != nil {
		return nil, NewPositionError(req.Symbol, "calculate_hedge", err)
	}

	spotOrder, err := l.gateway.PlaceSpotOrder(ctx, domain.OrderRequest{
		Market:   domain.SpotMarket,
		Symbol:   req.Symbol,
		Side:     req.StrategyType.SpotSide(),
		Type:     domain.MarketOrder,
		Quantity: spotQty,
	})
	if err != nil {
		return nil, NewPositionError(req.Symbol, "place_spot_order",
			fmt.Errorf("%w: %v", ErrOrderPlacementFail, exchange.Classify(err)))
	}
	res.SpotOrder = spotOrder

	futuresOrder, err := l.gateway.PlaceFuturesOrder(ctx, domain.OrderRequest{
		Market:   domain.FuturesMarket,
		Symbol:   req.Symbol,
		Side:     req.StrategyType.FuturesSide(),
		Type:     domain.MarketOrder,
		Quantity: diag.Sizing.Quantity,
	})
	if err != nil {
		l.unwindSpot(ctx, req, spotOrder, log)
		return nil, NewPositionError(req.Symbol, "place_futures_order",
			fmt.Errorf("%w: %v", ErrOrderPlacementFail, exchange.Classify(err)))
	}
	res.FuturesOrder = futuresOrder

	fundingRate := l.currentFundingRate(ctx, req.Symbol)
	if err := l.registry.Update(pos.ID, func(p *domain.ManagedPosition) {
		p.Status = domain.StatusActive
		p.StartTime = l.now()
		p.SpotQuantity = spotOrder.ExecutedQuantity
		p.FuturesQuantity = math.Abs(futuresOrder.ExecutedQuantity)
		p.CurrentFundingRate = fundingRate
	}); err != nil {
		return nil, NewPositionError(req.Symbol, "register", err)
	}
	committed = true

	active, _ := l.registry.Get(pos.ID)
	res.Position = &active

	log.WithFields(logrus.Fields{
		"spot_qty":    active.SpotQuantity,
		"futures_qty": active.FuturesQuantity,
	}).Info("포지션 진입 완료")

	if err := l.notifier.SendTradeInfo(notification.TradeInfo{
		Action:          notification.ActionOpen,
		Symbol:          active.Symbol,
		StrategyType:    active.StrategyType,
		Investment:      active.Investment,
		Leverage:        active.Leverage,
		SpotQuantity:    active.SpotQuantity,
		FuturesQuantity: active.FuturesQuantity,
		MarkPrice:       markPrice,
		FundingRate:     fundingRate,
	}); err != nil {
		log.WithError(err).Warn("진입 알림 전송 실패")
	}

	return res, nil
}

// hedgeQuantity는 선물 수량에 맞춘 현물 레그 수량을 계산합니다
func (l *Launcher) hedgeQuantity(ctx context.Context, req domain.LaunchRequest, futuresQty float64) (float64, error) {
	filters, err := l.rules.SymbolFilters(ctx, domain.SpotMarket, req.Symbol)
	if err != nil {
		return 0, err
	}
	prices, err := l.gateway.GetPrices(ctx)
	if err != nil {
		return 0, exchange.Classify(err)
	}

	cfg := HedgeConfig{
		FuturesQuantity: futuresQty,
		Price:           prices[req.Symbol],
		StepSize:        filters.StepSize,
		MinQty:          filters.MinQty,
		MinNotional:     filters.MinNotional,
	}
	if req.StrategyType.SpotSide() == domain.Sell {
		balances, err := l.gateway.GetSpotBalances(ctx)
		if err != nil {
			return 0, exchange.Classify(err)
		}
		cfg.MaxQuantity = balances[domain.BaseAsset(req.Symbol)].Free
		if cfg.MaxQuantity <= 0 {
			return 0, ErrInsufficientBalance
		}
	}
	return CalculateHedgeQuantity(cfg)
}

// unwindSpot은 선물 주문 실패 시 이미 체결된 현물 레그를 되돌립니다 (최선 노력)
func (l *Launcher) unwindSpot(ctx context.Context, req domain.LaunchRequest, spotOrder *domain.OrderResponse, log *logrus.Entry) {
	_, err := l.gateway.PlaceSpotOrder(ctx, domain.OrderRequest{
		Market:   domain.SpotMarket,
		Symbol:   req.Symbol,
		Side:     spotOrder.Side.Opposite(),
		Type:     domain.MarketOrder,
		Quantity: spotOrder.ExecutedQuantity,
	})
	if err != nil {
		log.WithError(err).Error("현물 레그 되돌리기 실패, 수동 확인 필요")
		if nerr := l.notifier.SendError(NewPositionError(req.Symbol, "unwind_spot", err)); nerr != nil {
			log.WithError(nerr).Warn("에러 알림 전송 실패")
		}
		return
	}
	log.Warn("선물 주문 실패로 현물 레그 되돌림")
}

func (l *Launcher) currentFundingRate(ctx context.Context, symbol string) float64 {
	if l.funding == nil {
		return 0
	}
	rate, ok, err := l.funding.FundingRate(ctx, symbol)
	if err != nil || !ok {
		return 0
	}
	return rate
}

// Close는 선물 레그를 reduce-only 시장가로 청산하고 현물 레그를 정리한 뒤 포지션을 삭제합니다.
// 중간 실패 시 이미 처리된 레그 수량을 0으로 기록하고 ACTIVE로 되돌려 재시도할 수 있게 합니다.
func (l *Launcher) Close(ctx context.Context, id string) error {
	pos, ok := l.registry.Get(id)
	if !ok {
		return NewPositionError("", "close", ErrPositionNotFound)
	}
	if err := l.registry.Transition(id, domain.StatusActive, domain.StatusClosing); err != nil {
		return NewPositionError(pos.Symbol, "close", err)
	}

	log := l.log.WithField("position_id", id)
	spotExit, futuresExit := ExitSides(pos.StrategyType)

	fail := func(op string, err error) error {
		_ = l.registry.Transition(id, domain.StatusClosing, domain.StatusActive)
		log.WithError(err).WithField("op", op).Error("포지션 청산 실패")
		return NewPositionError(pos.Symbol, op, err)
	}

	// 1. 선물 레그 청산
	fp, err := l.gateway.GetFuturesPosition(ctx, pos.Symbol)
	if err != nil {
		return fail("get_futures_position", exchange.Classify(err))
	}
	futuresQty := math.Abs(fp.Quantity)
	if futuresQty == 0 {
		futuresQty = pos.FuturesQuantity
	}
	if futuresQty > 0 {
		if _, err := l.gateway.PlaceFuturesOrder(ctx, domain.OrderRequest{
			Market:     domain.FuturesMarket,
			Symbol:     pos.Symbol,
			Side:       futuresExit,
			Type:       domain.MarketOrder,
			Quantity:   futuresQty,
			ReduceOnly: true,
		}); err != nil {
			return fail("close_futures", exchange.Classify(err))
		}
	}
	_ = l.registry.Update(id, func(p *domain.ManagedPosition) { p.FuturesQuantity = 0 })

	// 2. 현물 레그 정리
	spotQty, err := l.spotExitQuantity(ctx, pos, spotExit)
	if err != nil {
		return fail("spot_exit_quantity", err)
	}
	if spotQty > 0 {
		if _, err := l.gateway.PlaceSpotOrder(ctx, domain.OrderRequest{
			Market:   domain.SpotMarket,
			Symbol:   pos.Symbol,
			Side:     spotExit,
			Type:     domain.MarketOrder,
			Quantity: spotQty,
		}); err != nil {
			return fail("close_spot", exchange.Classify(err))
		}
	} else {
		log.Info("현물 레그 잔량이 최소 주문 단위 미만이라 정리하지 않음")
	}

	l.registry.Remove(id)
	log.Info("포지션 청산 완료")

	if err := l.notifier.SendTradeInfo(notification.TradeInfo{
		Action:          notification.ActionClose,
		Symbol:          pos.Symbol,
		StrategyType:    pos.StrategyType,
		Investment:      pos.Investment,
		Leverage:        pos.Leverage,
		SpotQuantity:    spotQty,
		FuturesQuantity: futuresQty,
		FundingRate:     pos.CurrentFundingRate,
	}); err != nil {
		log.WithError(err).Warn("청산 알림 전송 실패")
	}
	return nil
}

// spotExitQuantity는 현물 정리 수량을 계산합니다.
// 매도라면 가용 기초자산을 넘지 않게 하고 최소 주문 가치 미만이면 0을 반환합니다.
func (l *Launcher) spotExitQuantity(ctx context.Context, pos domain.ManagedPosition, side domain.OrderSide) (float64, error) {
	if pos.SpotQuantity <= 0 {
		return 0, nil
	}
	filters, err := l.rules.SymbolFilters(ctx, domain.SpotMarket, pos.Symbol)
	if err != nil {
		return 0, err
	}
	prices, err := l.gateway.GetPrices(ctx)
	if err != nil {
		return 0, exchange.Classify(err)
	}

	qty := pos.SpotQuantity
	if side == domain.Sell {
		balances, err := l.gateway.GetSpotBalances(ctx)
		if err != nil {
			return 0, exchange.Classify(err)
		}
		if free := balances[domain.BaseAsset(pos.Symbol)].Free; free < qty {
			qty = free
		}
	}
	qty = domain.FloorToStep(qty, filters.StepSize)
	if qty <= 0 || domain.Notional(qty, prices[pos.Symbol]) < filters.MinNotional {
		return 0, nil
	}
	return qty, nil
}

func rejected(res *LaunchResult, kind domain.ErrorKind, msg string) *LaunchResult {
	res.Kind = kind
	res.Error = msg
	return res
}
