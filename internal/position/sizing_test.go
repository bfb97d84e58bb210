package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHedgeQuantity(t *testing.T) {
	tests := []struct {
		name    string
		cfg     HedgeConfig
		want    float64
		wantErr bool
	}{
		{
			name: "선물 수량과 동일",
			cfg:  HedgeConfig{FuturesQuantity: 0.25, Price: 2000, StepSize: 0.0001, MinNotional: 5},
			want: 0.25,
		},
		{
			name: "현물 step으로 내림",
			cfg:  HedgeConfig{FuturesQuantity: 1.234, Price: 10, StepSize: 0.01, MinNotional: 5},
			want: 1.23,
		},
		{
			name: "보유 상한 적용",
			cfg:  HedgeConfig{FuturesQuantity: 2, Price: 10, StepSize: 0.1, MinNotional: 5, MaxQuantity: 1.55},
			want: 1.5,
		},
		{
			name:    "최소 주문 가치 미만",
			cfg:     HedgeConfig{FuturesQuantity: 0.001, Price: 2000, StepSize: 0.001, MinNotional: 5},
			wantErr: true,
		},
		{
			name:    "최소 수량 미만",
			cfg:     HedgeConfig{FuturesQuantity: 0.5, Price: 2000, StepSize: 0.1, MinQty: 1},
			wantErr: true,
		},
		{
			name:    "가격 없음",
			cfg:     HedgeConfig{FuturesQuantity: 1, StepSize: 0.1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateHedgeQuantity(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}
