package position

import (
	"context"

	"github.com/assist-by/fundbot/internal/domain"
	"github.com/assist-by/fundbot/internal/preflight"
	"github.com/assist-by/fundbot/internal/transfer"
)

// LaunchResult는 포지션 진입 결과를 담습니다.
// 사전 검증 실패는 에러가 아니라 Kind와 Error로 표현됩니다.
type LaunchResult struct {
	Position     *domain.ManagedPosition  // 진입 성공 시 등록된 포지션
	Capital      *preflight.CapitalReport // 자본 충분성 분석
	Transfer     *transfer.Result         // 지갑 이체 계획/실행
	Margin       *preflight.Diagnostic    // 선물 레그 검증
	SpotOrder    *domain.OrderResponse    // 현물 레그 주문
	FuturesOrder *domain.OrderResponse    // 선물 레그 주문
	DryRun       bool
	Kind         domain.ErrorKind
	Error        string
}

// OK는 진입(또는 dry run 계획)이 성공했는지 반환합니다
func (r *LaunchResult) OK() bool {
	return r.Kind == domain.KindNone && r.Error == ""
}

// Manager는 펀딩비 차익 포지션 관리를 담당하는 인터페이스입니다
type Manager interface {
	// Launch는 사전 검증 후 현물/선물 두 레그로 포지션을 진입합니다
	Launch(ctx context.Context, req domain.LaunchRequest) (*LaunchResult, error)

	// Close는 선물 레그를 reduce-only로 청산하고 현물 레그를 정리한 뒤 포지션을 삭제합니다
	Close(ctx context.Context, id string) error

	// Positions는 현재 관리 중인 포지션 목록을 반환합니다
	Positions() []domain.ManagedPosition
}
