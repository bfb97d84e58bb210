package domain

import "time"

// OrderRequest는 주문 요청 정보를 표현합니다
type OrderRequest struct {
	Market        Market    // 현물/선물 구분
	Symbol        string    // 심볼 (예: BTCUSDT)
	Side          OrderSide // 매수/매도
	Type          OrderType // 주문 유형
	Quantity      float64   // 수량 (기초 자산 기준)
	QuoteQuantity float64   // 명목 가치 (USDT 기준, 현물 시장가 매수에서만 사용)
	ReduceOnly    bool      // 선물 청산 전용 주문 여부
	ClientOrderID string    // 클라이언트 측 주문 ID
}

// OrderResponse는 주문 응답을 표현합니다
type OrderResponse struct {
	OrderID          int64     // 주문 ID
	Market           Market    // 현물/선물 구분
	Symbol           string    // 심볼
	Status           string    // 주문 상태
	Side             OrderSide // 매수/매도
	ExecutedQuantity float64   // 체결된 기초 자산 수량
	QuoteQuantity    float64   // 체결된 명목 가치 (USDT 등 견적 자산 기준)
	AvgPrice         float64   // 평균 체결 가격
	CreateTime       time.Time // 주문 생성 시간

	Commissions map[string]float64 // 수수료 자산별 합계
}

// NetQuote는 매도 체결 대금에서 같은 자산으로 떼인 수수료를 뺀 실수령액입니다.
// 다른 자산(BNB 등)으로 낸 수수료는 차감하지 않습니다.
func (r *OrderResponse) NetQuote(quoteAsset string) float64 {
	net := r.QuoteQuantity - r.Commissions[quoteAsset]
	if net < 0 {
		return 0
	}
	return net
}

// FuturesPosition은 선물 포지션 정보를 표현합니다
type FuturesPosition struct {
	Symbol        string  // 심볼
	Quantity      float64 // 포지션 수량 (양수: 롱, 음수: 숏)
	EntryPrice    float64 // 평균 진입가
	MarkPrice     float64 // 마크 가격
	Leverage      int     // 레버리지
	UnrealizedPnL float64 // 미실현 손익
}

// TransferRequest는 지갑 간 이체 요청입니다
type TransferRequest struct {
	Asset  string
	Amount float64
	From   WalletType
	To     WalletType
}

// TransferResponse는 지갑 간 이체 응답입니다
type TransferResponse struct {
	TransactionID int64
}
