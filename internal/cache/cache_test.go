package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactwise/pactwise-backend/internal/config"
)

type payload struct {
	Total int     `json:"total"`
	Value float64 `json:"value"`
}

func TestMemory_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "dashboard:a", payload{Total: 2, Value: 200000}, time.Minute))

	var got payload
	hit, err := m.Get(ctx, "dashboard:a", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload{Total: 2, Value: 200000}, got)

	now = now.Add(time.Minute)
	hit, err = m.Get(ctx, "dashboard:a", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "k", payload{Total: 1}, 0))
	require.NoError(t, m.Delete(ctx, "k", "missing"))

	var got payload
	hit, err := m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNewWithoutRedisUsesMemory(t *testing.T) {
	c := New(context.Background(), config.RedisConfig{Enabled: false})
	_, ok := c.(*Memory)
	assert.True(t, ok)
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	require.NoError(t, c.Set(context.Background(), "k", 1, time.Minute))
	var v int
	hit, err := c.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}
