package conversion

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

const (
	DefaultWindowSize  = 3
	DefaultWindowDelay = 500 * time.Millisecond

	// DefaultSpotFeeRate는 현물 시장가 체결 수수료율입니다 (0.1%)
	DefaultSpotFeeRate = 0.001
)

// FilterSource는 심볼 거래 필터 조회 기능입니다 (rules.Cache가 구현)
type FilterSource interface {
	SymbolFilters(ctx context.Context, market domain.Market, symbol string) (*domain.SymbolFilters, error)
}

// Request는 단일 자산 변환 요청입니다
type Request struct {
	Asset  string
	Amount float64
}

// AssetResult는 자산별 변환 결과입니다
type AssetResult struct {
	Asset    string
	Amount   float64
	Path     Path
	Received float64
	Orders   []domain.OrderResponse
	Success  bool
	Error    string
}

// BatchResult는 배치 변환 전체 결과입니다
type BatchResult struct {
	Results       []AssetResult
	Orders        []domain.OrderResponse
	TotalReceived float64
	Succeeded     int
	Failed        int
}

// AllSucceeded는 모든 변환이 성공했는지 반환합니다
func (b *BatchResult) AllSucceeded() bool {
	return b.Failed == 0
}

// FailedAssets는 실패한 자산 목록을 반환합니다
func (b *BatchResult) FailedAssets() []string {
	var out []string
	for _, r := range b.Results {
		if !r.Success {
			out = append(out, r.Asset)
		}
	}
	return out
}

// Executor는 변환 요청을 고정 크기 윈도우 단위로 동시에 실행합니다
type Executor struct {
	gateway  exchange.Gateway
	filters  FilterSource
	resolver *Resolver
	log      *logrus.Entry

	windowSize  int
	windowDelay time.Duration
	feeRate     float64
}

// ExecutorOption은 실행기 생성 옵션입니다
type ExecutorOption func(*Executor)

// WithWindow는 동시 실행 윈도우 크기와 윈도우 간 지연을 설정합니다
func WithWindow(size int, delay time.Duration) ExecutorOption {
	return func(e *Executor) {
		if size > 0 {
			e.windowSize = size
		}
		e.windowDelay = delay
	}
}

// WithFeeRate는 최소 변환 수량 계산에 쓰는 현물 수수료율을 설정합니다
func WithFeeRate(rate float64) ExecutorOption {
	return func(e *Executor) {
		if rate >= 0 && rate < 1 {
			e.feeRate = rate
		}
	}
}

// NewExecutor는 새로운 배치 변환 실행기를 생성합니다
func NewExecutor(gateway exchange.Gateway, filters FilterSource, resolver *Resolver, log *logrus.Entry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		gateway:     gateway,
		filters:     filters,
		resolver:    resolver,
		log:         log.WithField("component", "conversion_executor"),
		windowSize:  DefaultWindowSize,
		windowDelay: DefaultWindowDelay,
		feeRate:     DefaultSpotFeeRate,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute는 요청을 윈도우 단위로 실행합니다.
// 개별 변환 실패는 결과에 기록되고 나머지 변환은 계속 진행됩니다.
// 가격/거래 가능 목록 조회 실패만 에러로 반환합니다.
func (e *Executor) Execute(ctx context.Context, requests []Request) (*BatchResult, error) {
	batch := &BatchResult{Results: make([]AssetResult, len(requests))}
	if len(requests) == 0 {
		return batch, nil
	}

	prices, err := e.gateway.GetPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("가격 조회 실패: %w", err)
	}
	tradable, err := e.gateway.GetTradableSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("거래 가능 심볼 조회 실패: %w", err)
	}

	for start := 0; start < len(requests); start += e.windowSize {
		if start > 0 && e.windowDelay > 0 {
			if err := sleepContext(ctx, e.windowDelay); err != nil {
				e.markCancelled(batch, requests, start, err)
				break
			}
		}

		end := start + e.windowSize
		if end > len(requests) {
			end = len(requests)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.windowSize)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				batch.Results[i] = e.convert(gctx, requests[i], prices, tradable)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, r := range batch.Results {
		if r.Success {
			batch.Succeeded++
			batch.TotalReceived += r.Received
		} else {
			batch.Failed++
		}
		batch.Orders = append(batch.Orders, r.Orders...)
	}

	e.log.WithFields(logrus.Fields{
		"requested":      len(requests),
		"succeeded":      batch.Succeeded,
		"failed":         batch.Failed,
		"total_received": batch.TotalReceived,
	}).Info("배치 변환 완료")

	return batch, nil
}

func (e *Executor) markCancelled(batch *BatchResult, requests []Request, from int, err error) {
	for i := from; i < len(requests); i++ {
		batch.Results[i] = AssetResult{
			Asset:  requests[i].Asset,
			Amount: requests[i].Amount,
			Error:  fmt.Sprintf("변환 취소: %v", err),
		}
	}
}

// convert는 한 자산을 경로의 각 홉마다 시장가 매도하고 체결 수량을 다음 홉으로 넘깁니다
func (e *Executor) convert(ctx context.Context, req Request, prices map[string]float64, tradable map[string]bool) AssetResult {
	res := AssetResult{Asset: req.Asset, Amount: req.Amount}
	log := e.log.WithField("asset", req.Asset)

	res.Path = e.resolver.Resolve(req.Asset, prices, tradable)
	if !res.Path.Viable() {
		res.Error = res.Path.Reason
		log.Warn("변환 경로 없음")
		return res
	}

	amount := req.Amount
	for _, hop := range res.Path.Hops {
		filters, err := e.filters.SymbolFilters(ctx, domain.SpotMarket, hop.Symbol)
		if err != nil {
			res.Error = err.Error()
			return res
		}

		qty := domain.FloorToStep(amount, filters.StepSize)
		if qty <= 0 {
			res.Error = fmt.Sprintf("%s: 수량 %.8f이(가) stepSize %.8f 미만입니다", hop.Symbol, amount, filters.StepSize)
			return res
		}
		if filters.MinQty > 0 && qty < filters.MinQty {
			res.Error = fmt.Sprintf("%s: 수량 %.8f이(가) 최소 수량 %.8f 미만입니다", hop.Symbol, qty, filters.MinQty)
			return res
		}
		if notional := domain.Notional(qty, hop.Price); notional < filters.MinNotional {
			res.Error = fmt.Sprintf("%s: 주문 금액 %.4f이(가) 최소 주문 금액 %.4f 미만입니다", hop.Symbol, notional, filters.MinNotional)
			return res
		}

		order, err := e.gateway.PlaceSpotOrder(ctx, domain.OrderRequest{
			Market:   domain.SpotMarket,
			Symbol:   hop.Symbol,
			Side:     hop.Side,
			Type:     domain.MarketOrder,
			Quantity: qty,
		})
		if err != nil {
			res.Error = fmt.Sprintf("%s 매도 실패: %v", hop.Symbol, exchange.Classify(err))
			log.WithError(err).WithField("symbol", hop.Symbol).Error("변환 주문 실패")
			return res
		}
		res.Orders = append(res.Orders, *order)
		// 수수료가 받는 자산에서 빠지므로 실수령액만 다음 홉으로 넘깁니다
		amount = order.NetQuote(hop.To)
	}

	res.Received = amount
	res.Success = true
	log.WithFields(logrus.Fields{
		"path":     res.Path.Reason,
		"received": res.Received,
	}).Info("자산 변환 완료")
	return res
}

// MinimumAmount는 경로의 모든 홉이 stepSize 내림 후에도 minQty와 minNotional을
// 통과하는 가장 작은 원천 자산 수량을 반환합니다. 중간 홉의 수수료 차감을 반영합니다.
func (e *Executor) MinimumAmount(ctx context.Context, path Path) (float64, error) {
	if !path.Viable() {
		return 0, fmt.Errorf("변환 경로가 없습니다: %s", path.Reason)
	}

	need := 0.0 // 다음 홉이 요구하는 입력 수량 (hop.To 단위)
	for i := len(path.Hops) - 1; i >= 0; i-- {
		hop := path.Hops[i]
		filters, err := e.filters.SymbolFilters(ctx, domain.SpotMarket, hop.Symbol)
		if err != nil {
			return 0, err
		}

		least := domain.MinQuantityForNotional(filters.MinNotional, hop.Price, filters.StepSize)
		if q := domain.CeilToStep(filters.MinQty, filters.StepSize); q > least {
			least = q
		}
		if least < filters.StepSize {
			least = filters.StepSize
		}
		if need > 0 {
			q := domain.CeilToStep(need/(hop.Price*(1-e.feeRate)), filters.StepSize)
			if q > least {
				least = q
			}
		}
		need = least
	}
	return need, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
