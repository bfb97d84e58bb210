// Package opportunity는 펀딩비 스냅샷을 점수화해 차익 기회 목록을 만듭니다.
package opportunity

import (
	"math"
	"sort"

	"github.com/assist-by/fundbot/internal/domain"
)

const (
	DefaultMinFundingRate = 0.0001
	DefaultMinLiquidity   = 1_000_000

	extremeThreshold = 0.005
	highThreshold    = 0.001

	liquidityUnit     = 1_000_000
	maxLiquidityScore = 10
)

// Thresholds는 기회 필터 기준입니다
type Thresholds struct {
	MinFundingRate float64 // 절대값 기준 최소 펀딩비
	MinLiquidity   float64 // 최소 24시간 거래대금
}

// DefaultThresholds는 기본 필터 기준을 반환합니다
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinFundingRate: DefaultMinFundingRate,
		MinLiquidity:   DefaultMinLiquidity,
	}
}

// Scorer는 펀딩비 스냅샷을 점수화합니다
type Scorer struct {
	thresholds Thresholds
}

// NewScorer는 새로운 점수 계산기를 생성합니다
func NewScorer(th Thresholds) *Scorer {
	return &Scorer{thresholds: th}
}

// Score는 기준 미달 스냅샷을 제외하고 점수 내림차순으로 정렬된 기회를 반환합니다.
//
//	liquidityScore = min(quoteVolume/1,000,000, 10)
//	riskScore      = |priceChange24h| / 10
//	score          = |fundingRate| × 1000 × liquidityScore / (1 + riskScore)
func (s *Scorer) Score(snapshots []domain.FundingSnapshot) []domain.Opportunity {
	opps := make([]domain.Opportunity, 0, len(snapshots))
	for _, snap := range snapshots {
		absRate := math.Abs(snap.FundingRate)
		if absRate < s.thresholds.MinFundingRate {
			continue
		}
		if snap.QuoteVolume24h < s.thresholds.MinLiquidity {
			continue
		}

		liquidityScore := math.Min(snap.QuoteVolume24h/liquidityUnit, maxLiquidityScore)
		riskScore := math.Abs(snap.PriceChangePercent24h) / 10

		opps = append(opps, domain.Opportunity{
			Symbol:         snap.Symbol,
			FundingRate:    snap.FundingRate,
			Liquidity:      snap.QuoteVolume24h,
			Volatility:     snap.PriceChangePercent24h,
			Score:          absRate * 1000 * liquidityScore / (1 + riskScore),
			Rating:         rate(absRate),
			Direction:      domain.DirectionForFundingRate(snap.FundingRate),
			AnnualizedRate: domain.AnnualizedRate(snap.FundingRate),
			MarkPrice:      snap.MarkPrice,
		})
	}

	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].Score != opps[j].Score {
			return opps[i].Score > opps[j].Score
		}
		return opps[i].Symbol < opps[j].Symbol
	})
	return opps
}

func rate(absRate float64) domain.Rating {
	switch {
	case absRate >= extremeThreshold:
		return domain.RatingExtreme
	case absRate >= highThreshold:
		return domain.RatingHigh
	default:
		return domain.RatingMedium
	}
}

// Best는 방향이 일치하는 기회 중 점수가 가장 높은 것을 반환합니다.
// opps는 Score가 반환한 정렬 순서를 유지해야 합니다.
func Best(opps []domain.Opportunity, direction domain.StrategyType) (domain.Opportunity, bool) {
	for _, o := range opps {
		if o.Direction == direction {
			return o, true
		}
	}
	return domain.Opportunity{}, false
}

// Find는 심볼의 기회를 찾습니다
func Find(opps []domain.Opportunity, symbol string) (domain.Opportunity, bool) {
	for _, o := range opps {
		if o.Symbol == symbol {
			return o, true
		}
	}
	return domain.Opportunity{}, false
}
