package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/exchange"
)

func TestTransferType(t *testing.T) {
	tests := []struct {
		name string
		from domain.WalletType
		to   domain.WalletType
		want gobinance.UserUniversalTransferType
		ok   bool
	}{
		{"현물→선물", domain.SpotWallet, domain.FuturesWallet, "MAIN_UMFUTURE", true},
		{"선물→현물", domain.FuturesWallet, domain.SpotWallet, "UMFUTURE_MAIN", true},
		{"마진→선물", domain.CrossMarginWallet, domain.FuturesWallet, "MARGIN_UMFUTURE", true},
		{"격리 마진은 미지원", domain.IsolatedMarginWallet, domain.SpotWallet, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TransferType(tt.from, tt.to)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetIsolatedMarginBalances_SumsAcrossPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sapi/v1/margin/isolated/account", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("signature"))
		w.Write([]byte(`{"assets":[
			{"symbol":"BTCUSDT","baseAsset":{"asset":"BTC","free":"0.5","locked":"0.1","totalAsset":"0.6"},
			 "quoteAsset":{"asset":"USDT","free":"100","locked":"0","totalAsset":"100"}},
			{"symbol":"ETHUSDT","baseAsset":{"asset":"ETH","free":"0","locked":"0","totalAsset":"0"},
			 "quoteAsset":{"asset":"USDT","free":"50","locked":"25","totalAsset":"75"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("key", "secret", WithBaseURLs(srv.URL, srv.URL))
	balances, err := c.GetIsolatedMarginBalances(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 150, balances["USDT"].Free, 1e-9)
	assert.InDelta(t, 25, balances["USDT"].Locked, 1e-9)
	assert.InDelta(t, 175, balances["USDT"].Total, 1e-9)
	assert.InDelta(t, 0.6, balances["BTC"].Total, 1e-9)
	_, hasETH := balances["ETH"]
	assert.False(t, hasETH, "잔고 없는 자산은 제외되어야 합니다")
}

func TestTransfer_SignsRequest(t *testing.T) {
	var gotQuery map[string][]string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sapi/v1/asset/transfer", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotQuery = r.URL.Query()
		gotKey = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`{"tranId":13526853623}`))
	}))
	defer srv.Close()

	c := NewClient("key", "secret", WithBaseURLs(srv.URL, srv.URL))
	res, err := c.Transfer(context.Background(), domain.TransferRequest{
		Asset:  "USDT",
		Amount: 12.5,
		From:   domain.SpotWallet,
		To:     domain.FuturesWallet,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(13526853623), res.TransactionID)
	assert.Equal(t, "key", gotKey)
	assert.Equal(t, "MAIN_UMFUTURE", gotQuery["type"][0])
	assert.Equal(t, "12.5", gotQuery["amount"][0])
	assert.NotEmpty(t, gotQuery["signature"])
	assert.NotEmpty(t, gotQuery["timestamp"])
}

func TestTransfer_ClassifiesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-5002,"msg":"You have insufficient balance."}`))
	}))
	defer srv.Close()

	c := NewClient("key", "secret", WithBaseURLs(srv.URL, srv.URL))
	_, err := c.Transfer(context.Background(), domain.TransferRequest{
		Asset: "USDT", Amount: 1, From: domain.SpotWallet, To: domain.FuturesWallet,
	})
	require.Error(t, err)

	apiErr := exchange.Classify(err)
	assert.Equal(t, exchange.CategoryBalance, apiErr.Category)
	assert.Equal(t, int64(-5002), apiErr.Code)
	assert.NotEmpty(t, apiErr.Remediation)
}
