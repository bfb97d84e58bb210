package exchange

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2/common"
)

// Category는 거래소 API 에러 분류입니다
type Category string

const (
	CategoryBalance    Category = "balance"
	CategoryValidation Category = "validation"
	CategoryPricing    Category = "pricing"
	CategoryFilters    Category = "filters"
	CategoryLeverage   Category = "leverage"
	CategoryAuth       Category = "auth"
	CategorySync       Category = "sync"
	CategoryUnknown    Category = "unknown"
)

var remediations = map[Category]string{
	CategoryBalance:    "잔고가 부족합니다. 투자금을 줄이거나 자동 변환(autoConvert)을 사용하세요.",
	CategoryValidation: "요청 파라미터가 거래소 규칙에 맞지 않습니다. 심볼과 수량을 확인하세요.",
	CategoryPricing:    "가격이 허용 범위를 벗어났습니다. 잠시 후 다시 시도하세요.",
	CategoryFilters:    "수량/명목가치가 심볼 필터(LOT_SIZE, MIN_NOTIONAL)를 위반합니다. 제안 수량을 사용하세요.",
	CategoryLeverage:   "요청 레버리지가 허용 구간을 초과합니다. 레버리지를 낮추세요.",
	CategoryAuth:       "API 키 또는 권한이 유효하지 않습니다. 키 설정과 IP 화이트리스트를 확인하세요.",
	CategorySync:       "서버 시간과 동기화되지 않았습니다. 시간 동기화 후 다시 시도하세요.",
	CategoryUnknown:    "알 수 없는 거래소 에러입니다. 로그를 확인하세요.",
}

// APIError는 분류된 거래소 API 에러입니다
type APIError struct {
	Category    Category
	Code        int64
	Message     string
	Remediation string
	Err         error
}

// Error는 error 인터페이스를 구현합니다
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("거래소 에러 [%s, 코드: %d]: %s", e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("거래소 에러 [%s]: %s", e.Category, e.Message)
}

// Unwrap은 내부 에러를 반환합니다
func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify는 게이트웨이 에러를 분류 체계에 매핑합니다.
// nil을 넘기면 nil을 반환합니다.
func Classify(err error) *APIError {
	if err == nil {
		return nil
	}

	var classified *APIError
	if errors.As(err, &classified) {
		return classified
	}

	out := &APIError{Category: CategoryUnknown, Message: err.Error(), Err: err}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.Code
		out.Message = apiErr.Message
		out.Category = categoryForCode(apiErr.Code)
	}

	if out.Category == CategoryUnknown {
		out.Category = categoryForMessage(out.Message)
	}

	out.Remediation = remediations[out.Category]
	return out
}

// categoryForCode는 바이낸스 에러 코드를 분류합니다
func categoryForCode(code int64) Category {
	switch code {
	case -2010, -2018, -2019, -3041, -5002:
		return CategoryBalance
	case -1013, -1111, -1112, -4164, -4003, -4005:
		return CategoryFilters
	case -1100, -1101, -1102, -1103, -1104, -1106, -1121, -4001:
		return CategoryValidation
	case -4131, -2021, -4016, -4024:
		return CategoryPricing
	case -4028, -4161, -2027, -2028:
		return CategoryLeverage
	case -1022, -2014, -2015, -1002:
		return CategoryAuth
	case -1021:
		return CategorySync
	}
	return CategoryUnknown
}

// categoryForMessage는 코드가 없는 에러를 메시지로 분류합니다
func categoryForMessage(msg string) Category {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "insufficient"), strings.Contains(m, "balance"):
		return CategoryBalance
	case strings.Contains(m, "notional"), strings.Contains(m, "lot_size"), strings.Contains(m, "filter"):
		return CategoryFilters
	case strings.Contains(m, "leverage"):
		return CategoryLeverage
	case strings.Contains(m, "timestamp"), strings.Contains(m, "recvwindow"):
		return CategorySync
	case strings.Contains(m, "api-key"), strings.Contains(m, "signature"), strings.Contains(m, "permission"):
		return CategoryAuth
	case strings.Contains(m, "price"):
		return CategoryPricing
	case strings.Contains(m, "invalid"), strings.Contains(m, "illegal"):
		return CategoryValidation
	}
	return CategoryUnknown
}
