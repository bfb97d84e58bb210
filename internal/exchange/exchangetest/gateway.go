// Package exchangetest는 테스트용 인메모리 거래소 게이트웨이를 제공합니다.
package exchangetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

type pair struct {
	base  string
	quote string
}

// Gateway는 현물 시장가 체결과 지갑 이체를 메모리에서 흉내내는 게이트웨이입니다.
// 모든 메서드는 동시 호출에 안전합니다.
type Gateway struct {
	mu sync.Mutex

	Prices          map[string]float64
	Tradable        map[string]bool
	Filters         map[string]*domain.SymbolFilters // key: market + ":" + symbol
	Brackets        map[string]*domain.LeverageBracket
	MarkPrices      map[string]float64
	Funding         []domain.FundingSnapshot
	Wallets         map[domain.WalletType]map[string]domain.Balance
	FuturesPosition map[string]float64

	// 실패 주입
	WalletErrors    map[domain.WalletType]error
	SpotOrderErrors map[string]error // key: symbol
	FuturesErr      error
	TransferErr     error
	FundingErrs     []error // 호출마다 앞에서부터 하나씩 소비

	// 현물 체결 수수료율. 받는 자산에서 차감합니다.
	SpotFeeRate float64
	// PlaceSpotOrder 진입 시 호출됩니다. 잠금 밖에서 실행되므로 블로킹해도 됩니다.
	BeforeSpotOrder func(order domain.OrderRequest)

	// 호출 기록
	SpotOrders    []domain.OrderRequest
	FuturesOrders []domain.OrderRequest
	Transfers     []domain.TransferRequest
	Leverages     map[string]int
	Calls         map[string]int

	pairs   map[string]pair
	orderID int64
}

var _ exchange.Gateway = (*Gateway)(nil)

// New는 빈 게이트웨이를 생성합니다
func New() *Gateway {
	return &Gateway{
		Prices:          make(map[string]float64),
		Tradable:        make(map[string]bool),
		Filters:         make(map[string]*domain.SymbolFilters),
		Brackets:        make(map[string]*domain.LeverageBracket),
		MarkPrices:      make(map[string]float64),
		Wallets:         make(map[domain.WalletType]map[string]domain.Balance),
		FuturesPosition: make(map[string]float64),
		WalletErrors:    make(map[domain.WalletType]error),
		SpotOrderErrors: make(map[string]error),
		Leverages:       make(map[string]int),
		Calls:           make(map[string]int),
		pairs:           make(map[string]pair),
	}
}

// AddSpotPair는 거래 가능한 현물 페어와 가격, 필터를 등록합니다
func (g *Gateway) AddSpotPair(base, quote string, price, stepSize, minNotional float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	symbol := base + quote
	g.pairs[symbol] = pair{base: base, quote: quote}
	g.Prices[symbol] = price
	g.Tradable[symbol] = true
	g.Filters[filterKey(domain.SpotMarket, symbol)] = &domain.SymbolFilters{
		Symbol:      symbol,
		Market:      domain.SpotMarket,
		StepSize:    stepSize,
		TickSize:    0.01,
		MinNotional: minNotional,
	}
}

// AddFuturesSymbol은 선물 심볼의 마크 가격, 필터, 레버리지 브라켓을 등록합니다
func (g *Gateway) AddFuturesSymbol(symbol string, markPrice, stepSize, minNotional float64, maxLeverage int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.MarkPrices[symbol] = markPrice
	g.Filters[filterKey(domain.FuturesMarket, symbol)] = &domain.SymbolFilters{
		Symbol:      symbol,
		Market:      domain.FuturesMarket,
		StepSize:    stepSize,
		TickSize:    0.01,
		MinNotional: minNotional,
	}
	g.Brackets[symbol] = &domain.LeverageBracket{
		Symbol:           symbol,
		MaxLeverage:      maxLeverage,
		MaintMarginRatio: 0.01,
	}
}

// SetBalance는 지갑의 자산 잔고를 설정합니다
func (g *Gateway) SetBalance(wallet domain.WalletType, asset string, free float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setFree(wallet, asset, free)
}

// Balance는 지갑의 자산 가용 잔고를 반환합니다
func (g *Gateway) Balance(wallet domain.WalletType, asset string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Wallets[wallet][asset].Free
}

// CallCount는 메서드 호출 횟수를 반환합니다
func (g *Gateway) CallCount(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[method]
}

func (g *Gateway) setFree(wallet domain.WalletType, asset string, free float64) {
	if g.Wallets[wallet] == nil {
		g.Wallets[wallet] = make(map[string]domain.Balance)
	}
	b := g.Wallets[wallet][asset]
	b.Asset = asset
	b.Free = free
	b.Total = b.Free + b.Locked
	g.Wallets[wallet][asset] = b
}

func (g *Gateway) record(method string) {
	g.Calls[method]++
}

func filterKey(market domain.Market, symbol string) string {
	return string(market) + ":" + symbol
}

func (g *Gateway) GetServerTime(ctx context.Context) (time.Time, error) {
	return time.Now(), nil
}

func (g *Gateway) SyncTime(ctx context.Context) error {
	return nil
}

func (g *Gateway) GetPrices(ctx context.Context) (map[string]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("GetPrices")

	out := make(map[string]float64, len(g.Prices))
	for k, v := range g.Prices {
		out[k] = v
	}
	return out, nil
}

func (g *Gateway) GetTradableSymbols(ctx context.Context) (map[string]bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("GetTradableSymbols")

	out := make(map[string]bool, len(g.Tradable))
	for k, v := range g.Tradable {
		out[k] = v
	}
	return out, nil
}

func (g *Gateway) GetSymbolFilters(ctx context.Context, market domain.Market, symbol string) (*domain.SymbolFilters, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("GetSymbolFilters")

	f, ok := g.Filters[filterKey(market, symbol)]
	if !ok {
		return nil, fmt.Errorf("심볼 정보를 찾을 수 없음: %s (%s)", symbol, market)
	}
	cp := *f
	return &cp, nil
}

func (g *Gateway) GetLeverageBracket(ctx context.Context, symbol string) (*domain.LeverageBracket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("GetLeverageBracket")

	b, ok := g.Brackets[symbol]
	if !ok {
		return nil, fmt.Errorf("레버리지 브라켓 정보가 없습니다: %s", symbol)
	}
	cp := *b
	return &cp, nil
}

func (g *Gateway) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("GetMarkPrice")

	p, ok := g.MarkPrices[symbol]
	if !ok {
		return 0, fmt.Errorf("마크 가격 정보가 없습니다: %s", symbol)
	}
	return p, nil
}

func (g *Gateway) GetFundingSnapshots(ctx context.Context) ([]domain.FundingSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("GetFundingSnapshots")
	if len(g.FundingErrs) > 0 {
		err := g.FundingErrs[0]
		g.FundingErrs = g.FundingErrs[1:]
		return nil, err
	}

	out := make([]domain.FundingSnapshot, len(g.Funding))
	copy(out, g.Funding)
	return out, nil
}

func (g *Gateway) walletBalances(wallet domain.WalletType) (map[string]domain.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Get" + string(wallet) + "Balances")

	if err := g.WalletErrors[wallet]; err != nil {
		return nil, err
	}
	out := make(map[string]domain.Balance)
	for k, v := range g.Wallets[wallet] {
		out[k] = v
	}
	return out, nil
}

func (g *Gateway) GetSpotBalances(ctx context.Context) (map[string]domain.Balance, error) {
	return g.walletBalances(domain.SpotWallet)
}

func (g *Gateway) GetFuturesBalances(ctx context.Context) (map[string]domain.Balance, error) {
	return g.walletBalances(domain.FuturesWallet)
}

func (g *Gateway) GetMarginBalances(ctx context.Context) (map[string]domain.Balance, error) {
	return g.walletBalances(domain.CrossMarginWallet)
}

func (g *Gateway) GetIsolatedMarginBalances(ctx context.Context) (map[string]domain.Balance, error) {
	return g.walletBalances(domain.IsolatedMarginWallet)
}

func (g *Gateway) GetFuturesPosition(ctx context.Context, symbol string) (*domain.FuturesPosition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("GetFuturesPosition")

	return &domain.FuturesPosition{
		Symbol:    symbol,
		Quantity:  g.FuturesPosition[symbol],
		MarkPrice: g.MarkPrices[symbol],
	}, nil
}

// PlaceSpotOrder는 등록된 가격으로 즉시 전량 체결하고 현물 지갑 잔고를 갱신합니다
func (g *Gateway) PlaceSpotOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	g.mu.Lock()
	hook := g.BeforeSpotOrder
	g.mu.Unlock()
	if hook != nil {
		hook(order)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("PlaceSpotOrder")

	if err := g.SpotOrderErrors[order.Symbol]; err != nil {
		return nil, err
	}
	p, ok := g.pairs[order.Symbol]
	if !ok {
		return nil, fmt.Errorf("알 수 없는 심볼: %s", order.Symbol)
	}
	price := g.Prices[order.Symbol]

	qty := order.Quantity
	if order.QuoteQuantity > 0 {
		qty = order.QuoteQuantity / price
	}
	quote := qty * price
	commissions := make(map[string]float64)

	spot := g.Wallets[domain.SpotWallet]
	switch order.Side {
	case domain.Sell:
		if spot[p.base].Free+1e-9 < qty {
			return nil, fmt.Errorf("잔고 부족: %s", p.base)
		}
		fee := quote * g.SpotFeeRate
		if fee > 0 {
			commissions[p.quote] = fee
		}
		g.setFree(domain.SpotWallet, p.base, spot[p.base].Free-qty)
		g.setFree(domain.SpotWallet, p.quote, g.Wallets[domain.SpotWallet][p.quote].Free+quote-fee)
	case domain.Buy:
		if spot[p.quote].Free+1e-9 < quote {
			return nil, fmt.Errorf("잔고 부족: %s", p.quote)
		}
		fee := qty * g.SpotFeeRate
		if fee > 0 {
			commissions[p.base] = fee
		}
		g.setFree(domain.SpotWallet, p.quote, spot[p.quote].Free-quote)
		g.setFree(domain.SpotWallet, p.base, g.Wallets[domain.SpotWallet][p.base].Free+qty-fee)
	}

	g.SpotOrders = append(g.SpotOrders, order)
	g.orderID++
	return &domain.OrderResponse{
		OrderID:          g.orderID,
		Market:           domain.SpotMarket,
		Symbol:           order.Symbol,
		Status:           "FILLED",
		Side:             order.Side,
		ExecutedQuantity: qty,
		QuoteQuantity:    quote,
		AvgPrice:         price,
		CreateTime:       time.Now(),
		Commissions:      commissions,
	}, nil
}

// PlaceFuturesOrder는 선물 포지션 수량만 갱신합니다
func (g *Gateway) PlaceFuturesOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("PlaceFuturesOrder")

	if g.FuturesErr != nil {
		return nil, g.FuturesErr
	}
	if order.Side == domain.Buy {
		g.FuturesPosition[order.Symbol] += order.Quantity
	} else {
		g.FuturesPosition[order.Symbol] -= order.Quantity
	}

	g.FuturesOrders = append(g.FuturesOrders, order)
	g.orderID++
	price := g.MarkPrices[order.Symbol]
	return &domain.OrderResponse{
		OrderID:          g.orderID,
		Market:           domain.FuturesMarket,
		Symbol:           order.Symbol,
		Status:           "FILLED",
		Side:             order.Side,
		ExecutedQuantity: order.Quantity,
		QuoteQuantity:    order.Quantity * price,
		AvgPrice:         price,
		CreateTime:       time.Now(),
	}, nil
}

// Transfer는 지갑 간 가용 잔고를 옮깁니다
func (g *Gateway) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Transfer")

	if g.TransferErr != nil {
		return nil, g.TransferErr
	}
	from := g.Wallets[req.From][req.Asset].Free
	if from+1e-9 < req.Amount {
		return nil, fmt.Errorf("잔고 부족: %s %s", req.From, req.Asset)
	}
	g.setFree(req.From, req.Asset, from-req.Amount)
	g.setFree(req.To, req.Asset, g.Wallets[req.To][req.Asset].Free+req.Amount)

	g.Transfers = append(g.Transfers, req)
	return &domain.TransferResponse{TransactionID: int64(len(g.Transfers))}, nil
}

func (g *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("SetLeverage")

	g.Leverages[symbol] = leverage
	return nil
}
