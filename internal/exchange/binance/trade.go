package binance

import (
	"context"
	"fmt"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

// PlaceSpotOrder는 현물 시장가 주문을 생성합니다
func (c *Client) PlaceSpotOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	svc := c.spot.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(gobinance.SideType(order.Side)).
		Type(gobinance.OrderTypeMarket)

	if order.QuoteQuantity > 0 {
		// USDT 금액으로 주문
		svc = svc.QuoteOrderQty(domain.FormatQuantity(order.QuoteQuantity))
	} else {
		// 코인 수량으로 주문
		svc = svc.Quantity(domain.FormatQuantity(order.Quantity))
	}
	if order.ClientOrderID != "" {
		svc = svc.NewClientOrderID(order.ClientOrderID)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("현물 주문 실패 [심볼: %s, 방향: %s, 수량: %.8f]: %w",
			order.Symbol, order.Side, order.Quantity, exchange.Classify(err))
	}

	executed := parseFloat(res.ExecutedQuantity)
	quote := parseFloat(res.CummulativeQuoteQuantity)
	commissions := make(map[string]float64)
	for _, fill := range res.Fills {
		commissions[fill.CommissionAsset] += parseFloat(fill.Commission)
	}
	avg := 0.0
	if executed > 0 {
		avg = quote / executed
	}

	return &domain.OrderResponse{
		OrderID:          res.OrderID,
		Market:           domain.SpotMarket,
		Symbol:           res.Symbol,
		Status:           string(res.Status),
		Side:             order.Side,
		ExecutedQuantity: executed,
		QuoteQuantity:    quote,
		AvgPrice:         avg,
		CreateTime:       time.UnixMilli(res.TransactTime),
		Commissions:      commissions,
	}, nil
}

// PlaceFuturesOrder는 선물 시장가 주문을 생성합니다
func (c *Client) PlaceFuturesOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	svc := c.futures.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(futures.SideType(order.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(domain.FormatQuantity(order.Quantity))

	if order.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if order.ClientOrderID != "" {
		svc = svc.NewClientOrderID(order.ClientOrderID)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("선물 주문 실패 [심볼: %s, 방향: %s, 수량: %.8f]: %w",
			order.Symbol, order.Side, order.Quantity, exchange.Classify(err))
	}

	return &domain.OrderResponse{
		OrderID:          res.OrderID,
		Market:           domain.FuturesMarket,
		Symbol:           res.Symbol,
		Status:           string(res.Status),
		Side:             order.Side,
		ExecutedQuantity: parseFloat(res.ExecutedQuantity),
		QuoteQuantity:    parseFloat(res.CumQuote),
		AvgPrice:         parseFloat(res.AvgPrice),
		CreateTime:       time.UnixMilli(res.UpdateTime),
	}, nil
}

// SetLeverage는 레버리지를 설정합니다
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := c.futures.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	if err != nil {
		return fmt.Errorf("레버리지 설정 실패: %w", exchange.Classify(err))
	}
	return nil
}

// transferTypes는 지갑 간 이체 유형(universal transfer) 매핑입니다
var transferTypes = map[[2]domain.WalletType]gobinance.UserUniversalTransferType{
	{domain.SpotWallet, domain.FuturesWallet}:        gobinance.UserUniversalTransferTypeMainToUmFutures,
	{domain.FuturesWallet, domain.SpotWallet}:        gobinance.UserUniversalTransferTypeUmFuturesToMain,
	{domain.SpotWallet, domain.CrossMarginWallet}:    gobinance.UserUniversalTransferTypeMainToMargin,
	{domain.CrossMarginWallet, domain.SpotWallet}:    gobinance.UserUniversalTransferTypeMarginToMain,
	{domain.FuturesWallet, domain.CrossMarginWallet}: gobinance.UserUniversalTransferTypeUmFuturesToMargin,
	{domain.CrossMarginWallet, domain.FuturesWallet}: gobinance.UserUniversalTransferTypeMarginToUmFutures,
}

// TransferType은 두 지갑 사이의 이체 유형 코드를 반환합니다
func TransferType(from, to domain.WalletType) (gobinance.UserUniversalTransferType, bool) {
	t, ok := transferTypes[[2]domain.WalletType{from, to}]
	return t, ok
}

// Transfer는 지갑 간 자산을 이체합니다
func (c *Client) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResponse, error) {
	transferType, ok := TransferType(req.From, req.To)
	if !ok {
		return nil, fmt.Errorf("지원하지 않는 이체 경로: %s → %s", req.From, req.To)
	}

	res, err := c.spot.NewUserUniversalTransferService().
		Type(transferType).
		Asset(req.Asset).
		Amount(domain.FormatQuantity(req.Amount)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("지갑 이체 실패 [%s %.8f %s → %s]: %w",
			req.Asset, req.Amount, req.From, req.To, exchange.Classify(err))
	}

	return &domain.TransferResponse{TransactionID: res.ID}, nil
}
