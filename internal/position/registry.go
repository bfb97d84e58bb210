package position

import (
	"sort"
	"sync"

	"github.com/assist-by/fundbot/internal/domain"
)

// Registry는 관리 포지션의 인메모리 저장소입니다.
// ID 중복 확인과 등록은 InsertIfAbsent 한 번의 잠금 구간에서 이루어집니다.
type Registry struct {
	mu        sync.RWMutex
	positions map[string]domain.ManagedPosition
}

// NewRegistry는 빈 저장소를 생성합니다
func NewRegistry() *Registry {
	return &Registry{positions: make(map[string]domain.ManagedPosition)}
}

// InsertIfAbsent는 같은 ID가 없을 때만 포지션을 등록하고 등록 여부를 반환합니다
func (r *Registry) InsertIfAbsent(p domain.ManagedPosition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.positions[p.ID]; ok {
		return false
	}
	r.positions[p.ID] = p
	return true
}

// Update는 등록된 포지션을 fn으로 수정합니다
func (r *Registry) Update(id string, fn func(*domain.ManagedPosition)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[id]
	if !ok {
		return ErrPositionNotFound
	}
	fn(&p)
	p.ID = id
	r.positions[id] = p
	return nil
}

// Remove는 포지션을 삭제합니다
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, id)
}

// Get은 포지션 복사본을 반환합니다
func (r *Registry) Get(id string) (domain.ManagedPosition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[id]
	return p, ok
}

// List는 시작 시각 순으로 정렬된 포지션 복사본을 반환합니다
func (r *Registry) List() []domain.ManagedPosition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ManagedPosition, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AutoManaged는 리밸런서 대상인 활성 포지션을 반환합니다
func (r *Registry) AutoManaged() []domain.ManagedPosition {
	var out []domain.ManagedPosition
	for _, p := range r.List() {
		if p.AutoManaged && p.Status == domain.StatusActive {
			out = append(out, p)
		}
	}
	return out
}

// Len은 등록된 포지션 수를 반환합니다
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.positions)
}

// Transition은 현재 상태가 from일 때만 to로 바꿉니다
func (r *Registry) Transition(id string, from, to domain.PositionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[id]
	if !ok {
		return ErrPositionNotFound
	}
	if p.Status != from {
		return ErrPositionBusy
	}
	p.Status = to
	r.positions[id] = p
	return nil
}
