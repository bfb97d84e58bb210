package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time         { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTL_GetOrFetch(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[string, int](time.Minute, WithClock[string, int](clock.Now))

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return calls * 10, nil
	}

	v, err := c.GetOrFetch(context.Background(), "BTCUSDT", fetch)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	// TTL 이내에는 재조회하지 않음
	clock.Advance(59 * time.Second)
	v, err = c.GetOrFetch(context.Background(), "BTCUSDT", fetch)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, calls)

	// 만료 후 한 번만 재조회
	clock.Advance(time.Second)
	v, err = c.GetOrFetch(context.Background(), "BTCUSDT", fetch)
	require.NoError(t, err)
	assert.Equal(t, 20, v)
	assert.Equal(t, 2, calls)
}

func TestTTL_Invalidate(t *testing.T) {
	c := NewTTL[string, string](time.Hour)
	c.Set("a", "x")

	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Invalidate("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTL_FetchErrorNotCached(t *testing.T) {
	c := NewTTL[string, int](time.Hour)
	boom := errors.New("boom")

	_, err := c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}
