package binance

import (
	"context"
	"fmt"

	gobinance "github.com/adshao/go-binance/v2"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

// GetSpotBalances는 현물 지갑 잔고를 조회합니다
func (c *Client) GetSpotBalances(ctx context.Context) (map[string]domain.Balance, error) {
	account, err := c.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("현물 잔고 조회 실패: %w", exchange.Classify(err))
	}

	balances := make(map[string]domain.Balance)
	for _, b := range account.Balances {
		free := parseFloat(b.Free)
		locked := parseFloat(b.Locked)
		// 잔고가 있는 자산만 포함
		if free == 0 && locked == 0 {
			continue
		}
		balances[b.Asset] = domain.Balance{Asset: b.Asset, Free: free, Locked: locked, Total: free + locked}
	}
	return balances, nil
}

// GetFuturesBalances는 USD-M 선물 지갑 잔고를 조회합니다
func (c *Client) GetFuturesBalances(ctx context.Context) (map[string]domain.Balance, error) {
	account, err := c.futures.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("선물 잔고 조회 실패: %w", exchange.Classify(err))
	}

	balances := make(map[string]domain.Balance)
	for _, a := range account.Assets {
		wallet := parseFloat(a.WalletBalance)
		if wallet <= 0 {
			continue
		}
		available := parseFloat(a.AvailableBalance)
		if available > wallet {
			available = wallet
		}
		balances[a.Asset] = domain.Balance{
			Asset:  a.Asset,
			Free:   available,
			Locked: wallet - available,
			Total:  wallet,
		}
	}
	return balances, nil
}

// GetMarginBalances는 교차 마진 지갑 잔고를 조회합니다
func (c *Client) GetMarginBalances(ctx context.Context) (map[string]domain.Balance, error) {
	account, err := c.spot.NewGetMarginAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("교차 마진 잔고 조회 실패: %w", exchange.Classify(err))
	}

	balances := make(map[string]domain.Balance)
	for _, a := range account.UserAssets {
		free := parseFloat(a.Free)
		locked := parseFloat(a.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		balances[a.Asset] = domain.Balance{Asset: a.Asset, Free: free, Locked: locked, Total: free + locked}
	}
	return balances, nil
}

// GetIsolatedMarginBalances는 모든 격리 마진 페어의 잔고를 자산별로 합산해 조회합니다
func (c *Client) GetIsolatedMarginBalances(ctx context.Context) (map[string]domain.Balance, error) {
	account, err := c.spot.NewGetIsolatedMarginAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("격리 마진 잔고 조회 실패: %w", exchange.Classify(err))
	}
	return isolatedBalances(account), nil
}

// isolatedBalances는 여러 격리 페어에 흩어진 같은 자산을 합산합니다
func isolatedBalances(account *gobinance.IsolatedMarginAccount) map[string]domain.Balance {
	balances := make(map[string]domain.Balance)
	for _, pair := range account.Assets {
		for _, entry := range []gobinance.IsolatedUserAsset{pair.BaseAsset, pair.QuoteAsset} {
			free := parseFloat(entry.Free)
			locked := parseFloat(entry.Locked)
			if free == 0 && locked == 0 {
				continue
			}
			cur, ok := balances[entry.Asset]
			if !ok {
				cur = domain.Balance{Asset: entry.Asset}
			}
			balances[entry.Asset] = cur.Add(domain.Balance{
				Asset:  entry.Asset,
				Free:   free,
				Locked: locked,
				Total:  free + locked,
			})
		}
	}
	return balances
}

// GetFuturesPosition은 심볼의 선물 포지션을 조회합니다. 포지션이 없으면 수량 0을 반환합니다.
func (c *Client) GetFuturesPosition(ctx context.Context, symbol string) (*domain.FuturesPosition, error) {
	risks, err := c.futures.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("포지션 조회 실패: %w", exchange.Classify(err))
	}

	pos := &domain.FuturesPosition{Symbol: symbol}
	for _, r := range risks {
		if r.Symbol != symbol {
			continue
		}
		pos.Quantity += parseFloat(r.PositionAmt)
		if ep := parseFloat(r.EntryPrice); ep > 0 {
			pos.EntryPrice = ep
		}
		if mp := parseFloat(r.MarkPrice); mp > 0 {
			pos.MarkPrice = mp
		}
	}
	return pos, nil
}
