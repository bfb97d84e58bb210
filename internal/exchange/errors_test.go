package exchange

import (
	"errors"
	"fmt"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category Category
		code     int64
	}{
		{"증거금 부족", &common.APIError{Code: -2019, Message: "Margin is insufficient."}, CategoryBalance, -2019},
		{"LOT_SIZE 위반", &common.APIError{Code: -1013, Message: "Filter failure: LOT_SIZE"}, CategoryFilters, -1013},
		{"레버리지 초과", &common.APIError{Code: -4028, Message: "Leverage 200 is not valid"}, CategoryLeverage, -4028},
		{"서명 오류", &common.APIError{Code: -1022, Message: "Signature for this request is not valid."}, CategoryAuth, -1022},
		{"시간 동기화", &common.APIError{Code: -1021, Message: "Timestamp for this request is outside of the recvWindow."}, CategorySync, -1021},
		{"래핑된 SDK 에러", fmt.Errorf("주문 실패: %w", &common.APIError{Code: -4164, Message: "notional must be no smaller than 5"}), CategoryFilters, -4164},
		{"코드 없는 메시지", errors.New("insufficient balance for requested action"), CategoryBalance, 0},
		{"네트워크 에러", errors.New("dial tcp: i/o timeout"), CategoryUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, remediations[tt.category], got.Remediation)
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	first := Classify(&common.APIError{Code: -2019, Message: "Margin is insufficient."})
	wrapped := fmt.Errorf("레그 주문 실패: %w", first)

	assert.Same(t, first, Classify(wrapped))
	assert.Nil(t, Classify(nil))
}
