// Package preflight는 주문 전 자본 충분성 분석과 증거금/주문 규칙 검증을 담당합니다.
// 예상 가능한 실패(잔고 부족, 필터 위반)는 에러가 아니라 Kind가 붙은 결과로 반환합니다.
package preflight

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/fundbot/internal/conversion"
	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

const (
	DefaultFeeBuffer     = 0.001
	DefaultTolerance     = 0.01
	DefaultOrderCostRate = DefaultTakerFeeRate + DefaultSlippageBps/10000

	// quoteOrderQty 전송 정밀도
	quotePrecision = 0.01
)

// CapitalStatus는 자본 분석 결과 상태입니다
type CapitalStatus string

const (
	CapitalSufficient       CapitalStatus = "SUFFICIENT"        // 이미 충분
	CapitalPlanned          CapitalStatus = "PLANNED"           // 변환 계획만 수립 (dry run 또는 autoConvert 꺼짐)
	CapitalConverted        CapitalStatus = "CONVERTED"         // 변환 실행 후 충분
	CapitalInsufficient     CapitalStatus = "INSUFFICIENT"      // 후보를 모두 써도 부족
	CapitalConversionFailed CapitalStatus = "CONVERSION_FAILED" // 변환 실행 실패
)

// Candidate는 부족분 충당에 쓰일 수 있는 보유 자산입니다
type Candidate struct {
	Asset     string
	Free      float64
	Value     float64 // 전량 변환 시 예상 기준 통화 가치
	Path      conversion.Path
	UseAmount float64 // 실제 변환할 수량 (마지막 후보는 일부만)
	UseValue  float64
	Skipped   bool
	Reason    string
}

// CapitalReport는 자본 충분성 분석 결과입니다
type CapitalReport struct {
	Symbol       string
	StrategyType domain.StrategyType
	Asset        string // 검사 대상 레그 자산 (USDT 또는 기초자산)
	Required     float64
	Available    float64
	Deficit      float64 // Asset 단위
	DeficitValue float64 // 기준 통화 단위
	Candidates   []Candidate
	Coverable    bool

	Conversion     *conversion.BatchResult
	SecondaryOrder *domain.OrderResponse
	Achieved       float64

	Status         CapitalStatus
	Kind           domain.ErrorKind
	PartialBalance bool // 일부 지갑 조회 실패 상태에서 분석됨
	Error          string
}

// OK는 다음 단계로 진행 가능한 자본 상태인지 반환합니다
func (r *CapitalReport) OK() bool {
	return r.Status == CapitalSufficient || r.Status == CapitalConverted
}

// SnapshotSource는 지갑 스냅샷 제공자입니다
type SnapshotSource interface {
	Snapshot(ctx context.Context) *domain.WalletSnapshot
}

// BatchConverter는 배치 변환 실행기입니다 (conversion.Executor가 구현)
type BatchConverter interface {
	Execute(ctx context.Context, requests []conversion.Request) (*conversion.BatchResult, error)
	MinimumAmount(ctx context.Context, path conversion.Path) (float64, error)
}

// CapitalConfig는 자본 분석 설정입니다
type CapitalConfig struct {
	FeeBuffer     float64
	Tolerance     float64
	OrderCostRate float64 // 선물 명목 금액 대비 수수료 + 슬리피지 예비금
}

// CapitalAnalyzer는 레그 필요 자금과 보유 자산을 비교하고 필요하면 변환으로 부족분을 채웁니다
type CapitalAnalyzer struct {
	gateway   exchange.Gateway
	wallets   SnapshotSource
	resolver  *conversion.Resolver
	converter BatchConverter
	cfg       CapitalConfig
	log       *logrus.Entry
}

// NewCapitalAnalyzer는 새로운 자본 분석기를 생성합니다
func NewCapitalAnalyzer(gateway exchange.Gateway, wallets SnapshotSource, resolver *conversion.Resolver, converter BatchConverter, cfg CapitalConfig, log *logrus.Entry) *CapitalAnalyzer {
	if cfg.FeeBuffer <= 0 {
		cfg.FeeBuffer = DefaultFeeBuffer
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.OrderCostRate <= 0 {
		cfg.OrderCostRate = DefaultOrderCostRate
	}
	return &CapitalAnalyzer{
		gateway:   gateway,
		wallets:   wallets,
		resolver:  resolver,
		converter: converter,
		cfg:       cfg,
		log:       log.WithField("component", "capital_analyzer"),
	}
}

// Analyze는 요청의 레그 필요 자금을 분석합니다.
// 잔고 부족과 변환 실패는 리포트의 Kind로 표현하고 게이트웨이 조회 실패만 에러로 반환합니다.
func (a *CapitalAnalyzer) Analyze(ctx context.Context, req domain.LaunchRequest) (*CapitalReport, error) {
	report := &CapitalReport{Symbol: req.Symbol, StrategyType: req.StrategyType}

	if !req.StrategyType.IsValid() {
		return invalid(report, fmt.Sprintf("지원하지 않는 전략 유형: %s", req.StrategyType)), nil
	}
	if req.Investment <= 0 {
		return invalid(report, fmt.Sprintf("투자금은 0보다 커야 합니다: %.2f", req.Investment)), nil
	}
	if req.Leverage < 1 {
		return invalid(report, fmt.Sprintf("레버리지는 1 이상이어야 합니다: %d", req.Leverage)), nil
	}

	prices, err := a.gateway.GetPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("가격 조회 실패: %w", err)
	}
	tradable, err := a.gateway.GetTradableSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("거래 가능 심볼 조회 실패: %w", err)
	}

	baseLeg := req.StrategyType == domain.LongFundingCapture
	price := prices[req.Symbol]
	if baseLeg && price <= 0 {
		return invalid(report, fmt.Sprintf("현물 가격 정보가 없습니다: %s", req.Symbol)), nil
	}

	snapshot := a.wallets.Snapshot(ctx)
	report.PartialBalance = snapshot.Partial()

	leg := req.LegInvestment()
	factor := 1 + a.cfg.FeeBuffer
	if baseLeg {
		report.Asset = domain.BaseAsset(req.Symbol)
		report.Required = leg / price * factor
		report.Available = snapshot.TotalFree(report.Asset)
	} else {
		report.Asset = domain.QuoteAsset
		// 현물 레그 + 선물 증거금 + 선물 주문 비용
		report.Required = (leg+leg/float64(req.Leverage))*factor + leg*a.cfg.OrderCostRate
		report.Available = snapshot.TotalFree(domain.QuoteAsset) - req.RetainBuffer
		if report.Available < 0 {
			report.Available = 0
		}
	}

	if report.Available >= report.Required {
		report.Status = CapitalSufficient
		report.Coverable = true
		return report, nil
	}

	report.Deficit = report.Required - report.Available
	report.DeficitValue = report.Deficit
	if baseLeg {
		report.DeficitValue = report.Deficit * price
	}

	remaining := a.buildCandidates(ctx, report, snapshot, req, prices, tradable)
	report.Coverable = remaining <= 0

	log := a.log.WithFields(logrus.Fields{
		"symbol":        req.Symbol,
		"asset":         report.Asset,
		"required":      report.Required,
		"available":     report.Available,
		"deficit_value": report.DeficitValue,
	})

	if !report.Coverable {
		report.Status = CapitalInsufficient
		report.Kind = domain.KindInsufficientFunds
		report.Error = fmt.Sprintf("보유 자산을 모두 변환해도 %.4f %s 부족합니다", remaining, domain.QuoteAsset)
		log.Warn("자본 부족")
		return report, nil
	}

	if !req.AutoConvert || req.DryRun {
		report.Status = CapitalPlanned
		return report, nil
	}

	return a.execute(ctx, report, req, log)
}

// buildCandidates는 현물 보유 자산을 가치 내림차순(동률이면 자산명)으로 정렬해
// 부족분만큼 배정하고 남은 부족분(기준 통화 단위)을 반환합니다.
// 일부만 쓰는 후보도 경로의 최소 주문 수량 아래로는 배정하지 않습니다.
func (a *CapitalAnalyzer) buildCandidates(ctx context.Context, report *CapitalReport, snapshot *domain.WalletSnapshot, req domain.LaunchRequest, prices map[string]float64, tradable map[string]bool) float64 {
	allowed := make(map[string]bool, len(req.AllowAssets))
	for _, asset := range req.AllowAssets {
		allowed[asset] = true
	}
	base := domain.BaseAsset(req.Symbol)

	var usable, skipped []Candidate
	for _, asset := range snapshot.Assets(domain.SpotWallet) {
		if asset == domain.QuoteAsset || asset == base {
			continue
		}
		if len(allowed) > 0 && !allowed[asset] {
			continue
		}

		free := snapshot.Free(domain.SpotWallet, asset)
		c := Candidate{Asset: asset, Free: free}
		c.Path = a.resolver.Resolve(asset, prices, tradable)
		if !c.Path.Viable() {
			c.Skipped = true
			c.Reason = c.Path.Reason
			skipped = append(skipped, c)
			continue
		}
		c.Value = c.Path.EstimateValue(free)
		if c.Value < req.MinConvertValue {
			c.Skipped = true
			c.Reason = fmt.Sprintf("가치 %.4f이(가) 최소 변환 가치 %.4f 미만", c.Value, req.MinConvertValue)
			skipped = append(skipped, c)
			continue
		}
		usable = append(usable, c)
	}

	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Value != usable[j].Value {
			return usable[i].Value > usable[j].Value
		}
		return usable[i].Asset < usable[j].Asset
	})

	remaining := report.DeficitValue
	assigned := make([]Candidate, 0, len(usable))
	for _, c := range usable {
		if remaining <= 0 {
			c.Skipped = true
			c.Reason = "부족분 충당 완료"
			assigned = append(assigned, c)
			continue
		}

		minimum, err := a.converter.MinimumAmount(ctx, c.Path)
		if err != nil {
			c.Skipped = true
			c.Reason = fmt.Sprintf("거래 규칙 조회 실패: %v", err)
			skipped = append(skipped, c)
			continue
		}
		if minimum > c.Free {
			c.Skipped = true
			c.Reason = fmt.Sprintf("최소 주문 수량 %.8f이(가) 보유 수량 %.8f보다 큽니다", minimum, c.Free)
			skipped = append(skipped, c)
			continue
		}

		if c.Value <= remaining {
			c.UseAmount = c.Free
			c.UseValue = c.Value
		} else {
			c.UseAmount = c.Free * remaining / c.Value
			c.UseValue = remaining
			if c.UseAmount < minimum {
				c.UseAmount = minimum
				c.UseValue = c.Path.EstimateValue(minimum)
			}
		}
		remaining -= c.UseValue
		assigned = append(assigned, c)
	}

	report.Candidates = append(assigned, skipped...)
	return remaining
}

func (a *CapitalAnalyzer) execute(ctx context.Context, report *CapitalReport, req domain.LaunchRequest, log *logrus.Entry) (*CapitalReport, error) {
	var requests []conversion.Request
	for _, c := range report.Candidates {
		if c.Skipped || c.UseAmount <= 0 {
			continue
		}
		requests = append(requests, conversion.Request{Asset: c.Asset, Amount: c.UseAmount})
	}

	batch, err := a.converter.Execute(ctx, requests)
	if err != nil {
		return nil, err
	}
	report.Conversion = batch

	if !batch.AllSucceeded() {
		report.Status = CapitalConversionFailed
		report.Kind = domain.KindConversionFailure
		report.Error = fmt.Sprintf("자산 변환 실패: %v", batch.FailedAssets())
		log.WithField("failed", batch.FailedAssets()).Error("자산 변환 실패로 사전 검증 중단")
		return report, nil
	}

	if report.Asset != domain.QuoteAsset {
		quoteQty := domain.FloorToStep(batch.TotalReceived, quotePrecision)
		order, err := a.gateway.PlaceSpotOrder(ctx, domain.OrderRequest{
			Market:        domain.SpotMarket,
			Symbol:        req.Symbol,
			Side:          domain.Buy,
			Type:          domain.MarketOrder,
			QuoteQuantity: quoteQty,
		})
		if err != nil {
			apiErr := exchange.Classify(err)
			report.Status = CapitalConversionFailed
			report.Kind = domain.KindConversionFailure
			report.Error = fmt.Sprintf("%s 매수 실패: %v", req.Symbol, apiErr)
			log.WithError(apiErr).Error("기초자산 매수 실패")
			return report, nil
		}
		report.SecondaryOrder = order
	}

	after := a.wallets.Snapshot(ctx)
	if report.Asset == domain.QuoteAsset {
		report.Achieved = after.TotalFree(domain.QuoteAsset) - req.RetainBuffer
	} else {
		report.Achieved = after.TotalFree(report.Asset)
	}

	if report.Achieved < report.Required*(1-a.cfg.Tolerance) {
		report.Status = CapitalInsufficient
		report.Kind = domain.KindInsufficientFunds
		report.Deficit = report.Required - report.Achieved
		report.Error = fmt.Sprintf("변환 후에도 %s %.8f 부족합니다", report.Asset, report.Deficit)
		log.WithField("achieved", report.Achieved).Warn("변환 후 자본 부족")
		return report, nil
	}

	report.Status = CapitalConverted
	log.WithField("achieved", report.Achieved).Info("변환으로 자본 충당 완료")
	return report, nil
}

func invalid(report *CapitalReport, msg string) *CapitalReport {
	report.Kind = domain.KindValidation
	report.Error = msg
	return report
}
