package domain

import (
	"sort"
	"time"
)

// WalletType은 계정 내 분리된 지갑 구분을 정의합니다
type WalletType string

const (
	SpotWallet           WalletType = "SPOT"
	FuturesWallet        WalletType = "FUTURES"
	CrossMarginWallet    WalletType = "CROSS_MARGIN"
	IsolatedMarginWallet WalletType = "ISOLATED_MARGIN"
)

// AllWallets는 집계 대상 지갑 목록입니다
var AllWallets = []WalletType{SpotWallet, FuturesWallet, CrossMarginWallet, IsolatedMarginWallet}

// Balance는 단일 자산의 잔고 정보를 표현합니다
type Balance struct {
	Asset  string  // 자산 심볼 (예: USDT, BTC)
	Free   float64 // 사용 가능한 잔고
	Locked float64 // 주문/증거금 등에 잠긴 잔고
	Total  float64 // Free + Locked
}

// Add는 두 잔고를 합산합니다
func (b Balance) Add(o Balance) Balance {
	return Balance{
		Asset:  b.Asset,
		Free:   b.Free + o.Free,
		Locked: b.Locked + o.Locked,
		Total:  b.Total + o.Total,
	}
}

// WalletError는 특정 지갑 조회 실패를 기록합니다
type WalletError struct {
	Wallet WalletType
	Err    string
}

// WalletSnapshot은 지갑별/자산별 잔고의 통합 뷰입니다.
// 조회할 때마다 새로 만들어지며 저장되지 않습니다.
type WalletSnapshot struct {
	Wallets   map[WalletType]map[string]Balance
	Combined  map[string]Balance
	Errors    []WalletError
	FetchedAt time.Time
}

// NewWalletSnapshot은 지갑별 잔고로 스냅샷을 만들고 통합 뷰를 계산합니다
func NewWalletSnapshot(wallets map[WalletType]map[string]Balance, errs []WalletError, at time.Time) *WalletSnapshot {
	if wallets == nil {
		wallets = make(map[WalletType]map[string]Balance)
	}
	s := &WalletSnapshot{
		Wallets:   wallets,
		Combined:  make(map[string]Balance),
		Errors:    errs,
		FetchedAt: at,
	}
	for _, w := range AllWallets {
		for asset, b := range wallets[w] {
			cur, ok := s.Combined[asset]
			if !ok {
				cur = Balance{Asset: asset}
			}
			s.Combined[asset] = cur.Add(b)
		}
	}
	return s
}

// Partial은 일부 지갑 조회가 실패했는지 반환합니다
func (s *WalletSnapshot) Partial() bool {
	return len(s.Errors) > 0
}

// Free는 특정 지갑의 사용 가능 잔고를 반환합니다
func (s *WalletSnapshot) Free(wallet WalletType, asset string) float64 {
	return s.Wallets[wallet][asset].Free
}

// TotalFree는 모든 지갑에 걸친 사용 가능 잔고 합계를 반환합니다
func (s *WalletSnapshot) TotalFree(asset string) float64 {
	return s.Combined[asset].Free
}

// Assets는 지정한 지갑에서 사용 가능 잔고가 있는 자산 목록을 정렬해 반환합니다
func (s *WalletSnapshot) Assets(wallet WalletType) []string {
	var assets []string
	for asset, b := range s.Wallets[wallet] {
		if b.Free > 0 {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	return assets
}
