package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryLoginGuard(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	g := NewMemoryLoginGuard(3, time.Minute)
	g.now = c.now

	for i := 0; i < 2; i++ {
		locked, err := g.Fail(ctx, "a@b.c")
		require.NoError(t, err)
		assert.False(t, locked)
	}
	locked, err := g.Fail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.True(t, locked)

	left, err := g.Locked(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, left)

	other, _ := g.Locked(ctx, "x@y.z")
	assert.Zero(t, other)

	c.advance(61 * time.Second)
	left, _ = g.Locked(ctx, "a@b.c")
	assert.Zero(t, left)
}

func TestMemoryLoginGuard_ResetClearsFailures(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryLoginGuard(2, time.Minute)

	_, _ = g.Fail(ctx, "a@b.c")
	require.NoError(t, g.Reset(ctx, "a@b.c"))

	locked, _ := g.Fail(ctx, "a@b.c")
	assert.False(t, locked)
}

func TestMemoryLoginGuard_WindowExpires(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Now()}
	g := NewMemoryLoginGuard(2, time.Minute)
	g.now = c.now

	_, _ = g.Fail(ctx, "a@b.c")
	c.advance(2 * time.Minute)
	locked, _ := g.Fail(ctx, "a@b.c")
	assert.False(t, locked)
}

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Now()}
	s := NewMemoryTokenStore()
	s.now = c.now

	require.NoError(t, s.Put(ctx, "d1", "user-1", time.Hour))

	uid, ok, err := s.Take(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", uid)

	_, ok, _ = s.Take(ctx, "d1")
	assert.False(t, ok, "tokens are single use")

	require.NoError(t, s.Put(ctx, "d2", "user-2", time.Minute))
	c.advance(2 * time.Minute)
	_, ok, _ = s.Take(ctx, "d2")
	assert.False(t, ok, "expired tokens are rejected")
}
