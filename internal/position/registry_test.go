package position

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/fundbot/internal/domain"
)

func TestRegistry_InsertIfAbsentHasSingleWinner(t *testing.T) {
	r := NewRegistry()
	pos := domain.ManagedPosition{ID: "short-funding-capture:ETHUSDT", Status: domain.StatusPending}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.InsertIfAbsent(pos) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Transition(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.InsertIfAbsent(domain.ManagedPosition{ID: "a", Status: domain.StatusActive}))

	require.NoError(t, r.Transition("a", domain.StatusActive, domain.StatusClosing))
	assert.ErrorIs(t, r.Transition("a", domain.StatusActive, domain.StatusClosing), ErrPositionBusy)
	assert.ErrorIs(t, r.Transition("missing", domain.StatusActive, domain.StatusClosing), ErrPositionNotFound)

	p, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusClosing, p.Status)
}

func TestRegistry_ListAndAutoManaged(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.InsertIfAbsent(domain.ManagedPosition{ID: "b", StartTime: base.Add(time.Hour), Status: domain.StatusActive, AutoManaged: true})
	r.InsertIfAbsent(domain.ManagedPosition{ID: "a", StartTime: base, Status: domain.StatusActive})
	r.InsertIfAbsent(domain.ManagedPosition{ID: "c", StartTime: base, Status: domain.StatusPending, AutoManaged: true})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{list[0].ID, list[1].ID, list[2].ID})

	auto := r.AutoManaged()
	require.Len(t, auto, 1)
	assert.Equal(t, "b", auto[0].ID)

	require.NoError(t, r.Update("b", func(p *domain.ManagedPosition) {
		p.ID = "changed"
		p.CurrentFundingRate = 0.001
	}))
	p, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", p.ID)
	assert.Equal(t, 0.001, p.CurrentFundingRate)
	assert.ErrorIs(t, r.Update("missing", func(*domain.ManagedPosition) {}), ErrPositionNotFound)
}
