package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-memory Cache with an injectable failure.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestKey(t *testing.T) {
	a := Key("flash", "  Prove Fermat's little theorem ")
	b := Key("flash", "prove fermat's little theorem")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Key("pro", "prove fermat's little theorem"))
}

func TestMemory(t *testing.T) {
	m, err := NewMemory(1 << 20)
	require.NoError(t, err)
	defer m.Close()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("HEAVY"), time.Hour))
	val, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "HEAVY", string(val))

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { _ = r.Close() })
	return mr, r
}

func TestNewMemory_SmallBudget(t *testing.T) {
	for _, budget := range []int64{-1, 0, 1, 99} {
		m, err := NewMemory(budget)
		require.NoError(t, err, "budget %d", budget)
		m.Close()
	}
}

func TestRedis(t *testing.T) {
	mr, r := setupRedis(t)
	ctx := context.Background()

	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "k", []byte("LOW"), time.Minute))
	assert.True(t, mr.Exists("test:k"))

	val, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "LOW", string(val))

	mr.FastForward(2 * time.Minute)
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire with its TTL")

	require.NoError(t, r.Set(ctx, "d", []byte("x"), 0))
	require.NoError(t, r.Delete(ctx, "d"))
	assert.False(t, mr.Exists("test:d"))
	assert.NoError(t, r.Ping(ctx))
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "sentinel:classify:", r.prefix)

	_, err = NewRedis(context.Background(), "", "")
	assert.Error(t, err)

	mr.Close()
	_, err = NewRedis(context.Background(), mr.Addr(), "")
	assert.Error(t, err)
}

func TestTiered_L2Backfill(t *testing.T) {
	l1, l2 := newMapCache(), newMapCache()
	c := NewTiered(l1, l2, time.Minute, nil)
	ctx := context.Background()

	l2.data["k"] = []byte("MEDIUM")
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "MEDIUM", string(val))
	assert.Equal(t, "MEDIUM", string(l1.data["k"]), "L2 hit must backfill L1")
}

func TestTiered_SetAndDelete(t *testing.T) {
	l1, l2 := newMapCache(), newMapCache()
	c := NewTiered(l1, l2, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("HEAVY"), time.Hour))
	assert.Contains(t, l1.data, "k")
	assert.Contains(t, l2.data, "k")

	require.NoError(t, c.Delete(ctx, "k"))
	assert.NotContains(t, l1.data, "k")
	assert.NotContains(t, l2.data, "k")
}

func TestTiered_L2OutageDegradesToMiss(t *testing.T) {
	l1, l2 := newMapCache(), newMapCache()
	l2.err = errors.New("connection refused")
	c := NewTiered(l1, l2, time.Minute, nil)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)

	err = c.Set(ctx, "k", []byte("LOW"), time.Hour)
	assert.Error(t, err)
	assert.Contains(t, l1.data, "k", "L1 is written before L2 fails")

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "LOW", string(val))
}

func TestTiered_WithMemoryAndRedis(t *testing.T) {
	mem, err := NewMemory(1 << 20)
	require.NoError(t, err)
	defer mem.Close()
	_, r := setupRedis(t)

	c := NewTiered(mem, r, time.Minute, nil)
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "shared", []byte("HEAVY"), time.Hour))

	val, ok, err := c.Get(ctx, "shared")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "HEAVY", string(val))

	val, ok, _ = mem.Get(ctx, "shared")
	assert.True(t, ok)
	assert.Equal(t, "HEAVY", string(val))
}
