// internal/exchange/exchange.go
package exchange

import (
	"context"
	"time"

	"github.com/assist-by/fundbot/internal/domain"
)

// Gateway는 거래소와의 상호작용을 위한 인터페이스입니다.
// 엔진은 이 기능 집합만 사용하며 자체 와이어 프로토콜은 없습니다.
type Gateway interface {
	// 시장 데이터 조회
	GetServerTime(ctx context.Context) (time.Time, error)
	GetPrices(ctx context.Context) (map[string]float64, error)
	GetTradableSymbols(ctx context.Context) (map[string]bool, error)
	GetSymbolFilters(ctx context.Context, market domain.Market, symbol string) (*domain.SymbolFilters, error)
	GetLeverageBracket(ctx context.Context, symbol string) (*domain.LeverageBracket, error)
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
	GetFundingSnapshots(ctx context.Context) ([]domain.FundingSnapshot, error)

	// 지갑별 잔고 조회
	GetSpotBalances(ctx context.Context) (map[string]domain.Balance, error)
	GetFuturesBalances(ctx context.Context) (map[string]domain.Balance, error)
	GetMarginBalances(ctx context.Context) (map[string]domain.Balance, error)
	GetIsolatedMarginBalances(ctx context.Context) (map[string]domain.Balance, error)
	GetFuturesPosition(ctx context.Context, symbol string) (*domain.FuturesPosition, error)

	// 거래 기능
	PlaceSpotOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error)
	PlaceFuturesOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error)
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResponse, error)

	// 설정 기능
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// 시간 동기화
	SyncTime(ctx context.Context) error
}
