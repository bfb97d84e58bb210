package opportunity

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/fundbot/internal/cache"
	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

const (
	DefaultRefreshInterval = 5 * time.Minute

	snapshotKey = "funding"
)

// Feed는 거래소 펀딩비 스냅샷을 주기 단위로 캐시하고 점수화된 기회를 제공합니다.
// 캐시된 스냅샷은 읽기 전용으로 취급합니다.
type Feed struct {
	gateway exchange.Gateway
	scorer  *Scorer
	cache   *cache.TTL[string, []domain.FundingSnapshot]
	retry   *exchange.RetryConfig
	log     *logrus.Entry
}

// FeedOption은 피드의 옵션을 정의합니다
type FeedOption func(*Feed)

// WithRetry는 스냅샷 조회 실패 시 재시도 설정을 지정합니다
func WithRetry(cfg exchange.RetryConfig, log *logrus.Entry) FeedOption {
	return func(f *Feed) {
		f.retry = &cfg
		if log != nil {
			f.log = log.WithField("component", "opportunity_feed")
		}
	}
}

// NewFeed는 새로운 기회 피드를 생성합니다
func NewFeed(gateway exchange.Gateway, scorer *Scorer, refresh time.Duration, opts ...FeedOption) *Feed {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	f := &Feed{
		gateway: gateway,
		scorer:  scorer,
		cache:   cache.NewTTL[string, []domain.FundingSnapshot](refresh),
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Snapshots는 캐시된 펀딩비 스냅샷을 반환합니다
func (f *Feed) Snapshots(ctx context.Context) ([]domain.FundingSnapshot, error) {
	snaps, err := f.cache.GetOrFetch(ctx, snapshotKey, f.fetch)
	if err != nil {
		return nil, fmt.Errorf("펀딩비 스냅샷 조회 실패: %w", err)
	}
	return snaps, nil
}

func (f *Feed) fetch(ctx context.Context) ([]domain.FundingSnapshot, error) {
	if f.retry == nil {
		return f.gateway.GetFundingSnapshots(ctx)
	}

	var snaps []domain.FundingSnapshot
	err := exchange.Retry(ctx, *f.retry, f.log, "펀딩비 스냅샷 조회", func() error {
		var err error
		snaps, err = f.gateway.GetFundingSnapshots(ctx)
		return err
	})
	return snaps, err
}

// Opportunities는 점수 내림차순으로 정렬된 기회 목록을 반환합니다
func (f *Feed) Opportunities(ctx context.Context) ([]domain.Opportunity, error) {
	snaps, err := f.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	return f.scorer.Score(snaps), nil
}

// FundingRate는 심볼의 현재 펀딩비를 반환합니다.
// 필터 기준과 무관하게 스냅샷 전체에서 찾습니다.
func (f *Feed) FundingRate(ctx context.Context, symbol string) (float64, bool, error) {
	snaps, err := f.Snapshots(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, s := range snaps {
		if s.Symbol == symbol {
			return s.FundingRate, true, nil
		}
	}
	return 0, false, nil
}

// Refresh는 다음 조회에서 스냅샷을 다시 가져오도록 캐시를 무효화합니다
func (f *Feed) Refresh() {
	f.cache.Invalidate(snapshotKey)
}
