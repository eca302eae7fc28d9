package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/entcache/provider"
)

func newTestProvider(t *testing.T, metrics bool) *Provider {
	t.Helper()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64, Metrics: metrics})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, false)

	ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, p.Del(ctx, "k"))
	_, ok, _ = p.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMultiOps(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, false)

	require.NoError(t, p.SetMulti(ctx, []pr.Item{
		{Key: "a", Value: []byte("1"), Cost: 1},
		{Key: "b", Value: []byte("2"), Cost: 1},
	}, time.Minute))

	got, err := p.GetMulti(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)

	require.NoError(t, p.DelMulti(ctx, []string{"a", "b"}))
	got, err = p.GetMulti(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIncrBy(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, false)

	n, ok, err := p.IncrBy(ctx, "c", 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), n)

	n, ok, err = p.IncrBy(ctx, "c", -1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	_, err = p.Set(ctx, "framed", []byte{1, 1, 'x'}, 1, 0)
	require.NoError(t, err)
	_, ok, err = p.IncrBy(ctx, "framed", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	off := newTestProvider(t, false)
	_, _, err := off.Stats(ctx)
	assert.ErrorIs(t, err, errMetricsDisabled)

	on := newTestProvider(t, true)
	_, err = on.Set(ctx, "k", []byte("v"), 1, 0)
	require.NoError(t, err)
	_, _, _ = on.Get(ctx, "k")
	_, _, _ = on.Get(ctx, "missing")

	hits, misses, err := on.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}
