package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

const (
	DefaultTakerFeeRate = 0.0004
	DefaultSlippageBps  = 10
)

// RulesSource는 심볼 필터와 레버리지 브라켓 조회 기능입니다 (rules.Cache가 구현)
type RulesSource interface {
	SymbolFilters(ctx context.Context, market domain.Market, symbol string) (*domain.SymbolFilters, error)
	LeverageBracket(ctx context.Context, symbol string) (*domain.LeverageBracket, error)
}

// MarginRequest는 레버리지 레그 검증 요청입니다
type MarginRequest struct {
	Symbol     string
	Side       domain.OrderSide
	Investment float64 // 레버리지 레그 명목 금액
	Leverage   int
	// AssumeAvailable이 설정되면 선물 잔고를 조회하지 않고 이 값을 가용 증거금으로 사용합니다 (dry run 이체 반영)
	AssumeAvailable *float64
}

// AccountSnapshot은 검증 시점의 증거금 잔고입니다
type AccountSnapshot struct {
	Asset     string
	Available float64
}

// SymbolSnapshot은 검증 시점의 심볼 규칙과 가격입니다
type SymbolSnapshot struct {
	Symbol      string
	MarkPrice   float64
	StepSize    float64
	MinNotional float64
	MinQty      float64
	MaxQty      float64
	MaxLeverage int
}

// Sizing은 수량 계산 과정입니다
type Sizing struct {
	Side        domain.OrderSide
	Investment  float64
	Leverage    int
	RawQuantity float64
	Quantity    float64
	Notional    float64
	RoundedUp   bool // minNotional 충족을 위해 올림 적용됨
}

// Cost는 필요 비용 내역입니다
type Cost struct {
	InitialMargin   float64
	Fee             float64
	SlippageReserve float64
	Total           float64
}

// Diagnostic은 주문 검증 결과입니다. 성공/실패와 무관하게 항상 모든 필드가 채워집니다.
type Diagnostic struct {
	CorrelationID     string
	Valid             bool
	Kind              domain.ErrorKind
	Account           AccountSnapshot
	Symbol            SymbolSnapshot
	Sizing            Sizing
	Cost              Cost
	Deficit           *float64
	SuggestedQuantity *float64
	Error             string
	CheckedAt         time.Time
}

// MarginConfig는 증거금 검증 설정입니다
type MarginConfig struct {
	TakerFeeRate float64
	SlippageBps  float64
	// RoundUpToMinNotional이 true면 minNotional 미달 수량을 다음 step 배수로 올리고,
	// false면 검증 실패로 처리합니다
	RoundUpToMinNotional bool
}

// DefaultMarginConfig는 기본 증거금 검증 설정을 반환합니다
func DefaultMarginConfig() MarginConfig {
	return MarginConfig{
		TakerFeeRate:         DefaultTakerFeeRate,
		SlippageBps:          DefaultSlippageBps,
		RoundUpToMinNotional: true,
	}
}

// MarginValidator는 선물 레그 주문의 레버리지, 수량 규칙, 증거금을 검증합니다
type MarginValidator struct {
	gateway exchange.Gateway
	rules   RulesSource
	cfg     MarginConfig
	log     *logrus.Entry
	now     func() time.Time
}

// NewMarginValidator는 새로운 증거금 검증기를 생성합니다
func NewMarginValidator(gateway exchange.Gateway, rules RulesSource, cfg MarginConfig, log *logrus.Entry) *MarginValidator {
	return &MarginValidator{
		gateway: gateway,
		rules:   rules,
		cfg:     cfg,
		log:     log.WithField("component", "margin_validator"),
		now:     time.Now,
	}
}

// Validate는 요청을 검증해 Diagnostic을 반환합니다.
// 레버리지 초과, 필터 위반, 증거금 부족은 Diagnostic의 Kind로 표현합니다.
// 에러는 게이트웨이 조회 실패에서만 반환하며 이때도 부분적으로 채워진 Diagnostic을 함께 반환합니다.
func (v *MarginValidator) Validate(ctx context.Context, req MarginRequest) (*Diagnostic, error) {
	d := &Diagnostic{
		CorrelationID: uuid.NewString(),
		Account:       AccountSnapshot{Asset: domain.QuoteAsset},
		Symbol:        SymbolSnapshot{Symbol: req.Symbol},
		Sizing: Sizing{
			Side:       req.Side,
			Investment: req.Investment,
			Leverage:   req.Leverage,
		},
		CheckedAt: v.now(),
	}
	log := v.log.WithFields(logrus.Fields{
		"correlation_id": d.CorrelationID,
		"symbol":         req.Symbol,
	})

	if req.Investment <= 0 {
		return v.reject(d, domain.KindValidation, fmt.Sprintf("투자금은 0보다 커야 합니다: %.4f", req.Investment)), nil
	}
	if req.Leverage < 1 {
		return v.reject(d, domain.KindValidation, fmt.Sprintf("레버리지는 1 이상이어야 합니다: %d", req.Leverage)), nil
	}

	if req.AssumeAvailable != nil {
		d.Account.Available = *req.AssumeAvailable
	} else {
		balances, err := v.gateway.GetFuturesBalances(ctx)
		if err != nil {
			d.Error = err.Error()
			return d, fmt.Errorf("선물 잔고 조회 실패: %w", exchange.Classify(err))
		}
		d.Account.Available = balances[domain.QuoteAsset].Free
	}

	filters, err := v.rules.SymbolFilters(ctx, domain.FuturesMarket, req.Symbol)
	if err != nil {
		d.Error = err.Error()
		return d, err
	}
	bracket, err := v.rules.LeverageBracket(ctx, req.Symbol)
	if err != nil {
		d.Error = err.Error()
		return d, err
	}
	price, err := v.gateway.GetMarkPrice(ctx, req.Symbol)
	if err != nil {
		d.Error = err.Error()
		return d, fmt.Errorf("마크 가격 조회 실패: %w", exchange.Classify(err))
	}

	d.Symbol = SymbolSnapshot{
		Symbol:      req.Symbol,
		MarkPrice:   price,
		StepSize:    filters.StepSize,
		MinNotional: filters.MinNotional,
		MinQty:      filters.MinQty,
		MaxQty:      filters.MaxQty,
		MaxLeverage: bracket.MaxLeverage,
	}

	if req.Leverage > bracket.MaxLeverage {
		return v.reject(d, domain.KindValidation,
			fmt.Sprintf("요청 레버리지 %dx가 최대 허용 레버리지 %dx를 초과합니다", req.Leverage, bracket.MaxLeverage)), nil
	}
	if price <= 0 {
		return v.reject(d, domain.KindValidation, fmt.Sprintf("유효하지 않은 마크 가격: %.8f", price)), nil
	}

	d.Sizing.RawQuantity = req.Investment / price
	qty := domain.FloorToStep(d.Sizing.RawQuantity, filters.StepSize)

	if filters.MinQty > 0 && qty < filters.MinQty {
		if !v.cfg.RoundUpToMinNotional {
			d.Sizing.Quantity = qty
			return v.reject(d, domain.KindValidation,
				fmt.Sprintf("수량 %s이(가) 최소 수량 %s 미만입니다", domain.FormatQuantity(qty), domain.FormatQuantity(filters.MinQty))), nil
		}
		qty = domain.CeilToStep(filters.MinQty, filters.StepSize)
		d.Sizing.RoundedUp = true
	}

	if domain.Notional(qty, price) < filters.MinNotional {
		if !v.cfg.RoundUpToMinNotional {
			d.Sizing.Quantity = qty
			d.Sizing.Notional = domain.Notional(qty, price)
			return v.reject(d, domain.KindValidation,
				fmt.Sprintf("주문 금액 %.4f이(가) 최소 주문 금액 %.4f 미만입니다", d.Sizing.Notional, filters.MinNotional)), nil
		}
		qty = domain.MinQuantityForNotional(filters.MinNotional, price, filters.StepSize)
		d.Sizing.RoundedUp = true
	}

	if filters.MaxQty > 0 && qty > filters.MaxQty {
		d.Sizing.Quantity = qty
		return v.reject(d, domain.KindValidation,
			fmt.Sprintf("수량 %s이(가) 최대 수량 %s을(를) 초과합니다", domain.FormatQuantity(qty), domain.FormatQuantity(filters.MaxQty))), nil
	}

	d.Sizing.Quantity = qty
	d.Sizing.Notional = domain.Notional(qty, price)
	d.Cost = v.cost(d.Sizing.Notional, req.Leverage)

	if d.Account.Available >= d.Cost.Total {
		d.Valid = true
		d.Kind = domain.KindNone
		log.WithFields(logrus.Fields{
			"quantity": qty,
			"cost":     d.Cost.Total,
		}).Debug("주문 검증 통과")
		return d, nil
	}

	deficit := d.Cost.Total - d.Account.Available
	suggested := v.affordableQuantity(d.Account.Available, price, req.Leverage, filters.StepSize)
	d.Deficit = &deficit
	d.SuggestedQuantity = &suggested
	d.Kind = domain.KindInsufficientFunds
	d.Error = fmt.Sprintf("증거금 부족: 필요 %.4f, 가용 %.4f, 부족 %.4f %s", d.Cost.Total, d.Account.Available, deficit, domain.QuoteAsset)

	log.WithFields(logrus.Fields{
		"deficit":   deficit,
		"suggested": suggested,
		"rounded":   d.Sizing.RoundedUp,
	}).Info("증거금 부족")
	return d, nil
}

// cost는 명목 금액에 대한 개시 증거금, 수수료, 슬리피지 예비금을 계산합니다
func (v *MarginValidator) cost(notional float64, leverage int) Cost {
	c := Cost{
		InitialMargin:   notional / float64(leverage),
		Fee:             notional * v.cfg.TakerFeeRate,
		SlippageReserve: notional * v.cfg.SlippageBps / 10000,
	}
	c.Total = c.InitialMargin + c.Fee + c.SlippageReserve
	return c
}

// affordableQuantity는 available = price·qty·(1/L + fee + slippage)를 qty에 대해 풀고 step으로 내림합니다
func (v *MarginValidator) affordableQuantity(available, price float64, leverage int, stepSize float64) float64 {
	perUnit := price * (1/float64(leverage) + v.cfg.TakerFeeRate + v.cfg.SlippageBps/10000)
	if perUnit <= 0 || available <= 0 {
		return 0
	}
	return domain.FloorToStep(available/perUnit, stepSize)
}

func (v *MarginValidator) reject(d *Diagnostic, kind domain.ErrorKind, msg string) *Diagnostic {
	d.Valid = false
	d.Kind = kind
	d.Error = msg
	v.log.WithFields(logrus.Fields{
		"correlation_id": d.CorrelationID,
		"symbol":         d.Symbol.Symbol,
		"kind":           kind,
	}).Info(msg)
	return d
}
