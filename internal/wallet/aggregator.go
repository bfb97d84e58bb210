// Package wallet은 분리된 지갑 잔고를 하나의 스냅샷으로 집계합니다.
package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

// Aggregator는 지갑별 잔고를 독립적으로 조회해 통합 스냅샷을 만듭니다
type Aggregator struct {
	gateway exchange.Gateway
	log     *logrus.Entry
	now     func() time.Time
}

// NewAggregator는 새로운 지갑 집계기를 생성합니다
func NewAggregator(gateway exchange.Gateway, log *logrus.Entry) *Aggregator {
	return &Aggregator{
		gateway: gateway,
		log:     log.WithField("component", "wallet_aggregator"),
		now:     time.Now,
	}
}

// Snapshot은 네 지갑을 동시에 조회합니다.
// 한 지갑의 실패는 Errors에 기록되고 나머지 조회를 중단시키지 않습니다.
// 호출자는 Partial()로 부분 결과 여부를 확인해야 합니다.
func (a *Aggregator) Snapshot(ctx context.Context) *domain.WalletSnapshot {
	fetchers := map[domain.WalletType]func(context.Context) (map[string]domain.Balance, error){
		domain.SpotWallet:           a.gateway.GetSpotBalances,
		domain.FuturesWallet:        a.gateway.GetFuturesBalances,
		domain.CrossMarginWallet:    a.gateway.GetMarginBalances,
		domain.IsolatedMarginWallet: a.gateway.GetIsolatedMarginBalances,
	}

	var (
		mu      sync.Mutex
		wallets = make(map[domain.WalletType]map[string]domain.Balance, len(fetchers))
		errs    []domain.WalletError
	)

	// 실패를 에러로 반환하지 않으므로 errgroup은 나머지 조회를 취소하지 않습니다
	var g errgroup.Group
	for _, w := range domain.AllWallets {
		w, fetch := w, fetchers[w]
		g.Go(func() error {
			balances, err := fetch(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.log.WithError(err).WithField("wallet", w).Warn("지갑 잔고 조회 실패")
				errs = append(errs, domain.WalletError{Wallet: w, Err: err.Error()})
				wallets[w] = map[string]domain.Balance{}
				return nil
			}
			wallets[w] = balances
			return nil
		})
	}
	_ = g.Wait()

	// 에러 순서를 지갑 순서로 고정
	ordered := make([]domain.WalletError, 0, len(errs))
	for _, w := range domain.AllWallets {
		for _, e := range errs {
			if e.Wallet == w {
				ordered = append(ordered, e)
			}
		}
	}

	return domain.NewWalletSnapshot(wallets, ordered, a.now())
}
