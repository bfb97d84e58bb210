package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWalletSnapshot_CombinedEqualsSumOfWallets(t *testing.T) {
	snap := NewWalletSnapshot(map[WalletType]map[string]Balance{
		SpotWallet:           {"USDT": {Asset: "USDT", Free: 100, Locked: 5, Total: 105}, "ETH": {Asset: "ETH", Free: 0.5, Total: 0.5}},
		FuturesWallet:        {"USDT": {Asset: "USDT", Free: 50, Total: 50}},
		CrossMarginWallet:    {"USDT": {Asset: "USDT", Free: 10, Locked: 1, Total: 11}},
		IsolatedMarginWallet: {"ETH": {Asset: "ETH", Free: 0.1, Total: 0.1}},
	}, []WalletError{{Wallet: IsolatedMarginWallet, Err: "timeout"}}, time.Now())

	assert.InDelta(t, 166, snap.Combined["USDT"].Total, 1e-12)
	assert.InDelta(t, 160, snap.TotalFree("USDT"), 1e-12)
	assert.InDelta(t, 0.6, snap.Combined["ETH"].Total, 1e-12)
	assert.Equal(t, 50.0, snap.Free(FuturesWallet, "USDT"))
	assert.Equal(t, []string{"ETH", "USDT"}, snap.Assets(SpotWallet))
	assert.True(t, snap.Partial())
	assert.Zero(t, snap.Free(IsolatedMarginWallet, "USDT"))
}
