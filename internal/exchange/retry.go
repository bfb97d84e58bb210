package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig는 거래소 조회 재시도 설정입니다
type RetryConfig struct {
	MaxRetries int           // 최대 재시도 횟수
	BaseDelay  time.Duration // 기본 대기 시간
	MaxDelay   time.Duration // 최대 대기 시간
	Factor     float64       // 대기 시간 증가 계수
}

// DefaultRetryConfig는 기본 재시도 설정을 반환합니다
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Factor:     2,
	}
}

// IsRetryable은 다시 시도해 볼 만한 에러인지 판단합니다.
// 잔고, 필터, 인증처럼 요청을 바꾸지 않으면 같은 결과가 나오는 에러는 재시도하지 않습니다.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err).Category {
	case CategoryUnknown, CategorySync, CategoryPricing:
		return true
	}
	return false
}

// Retry는 fn이 성공하거나 재시도할 수 없는 에러를 낼 때까지 지수 백오프로 반복합니다
func Retry(ctx context.Context, cfg RetryConfig, log *logrus.Entry, operation string, fn func() error) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			log.WithError(err).WithField("operation", operation).Debug("재시도 불필요한 에러")
			return err
		}
		if attempt == cfg.MaxRetries {
			return fmt.Errorf("%s 최대 재시도 횟수 초과: %w", operation, lastErr)
		}

		log.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt + 1,
			"max":       cfg.MaxRetries,
		}).Warn("거래소 호출 실패, 재시도합니다")

		// 다음 재시도 전 대기
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * cfg.Factor)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}
	return lastErr
}
