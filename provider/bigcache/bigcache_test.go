package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/entcache/provider"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{LifeWindow: time.Minute, MaxEntriesInWindow: 100, MaxEntrySize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestRoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Set(ctx, "k", []byte("v"), 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, p.Del(ctx, "k"))
	require.NoError(t, p.Del(ctx, "k"), "deleting a missing key is not an error")
}

func TestMultiOpsAndCounters(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	require.NoError(t, p.SetMulti(ctx, []pr.Item{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	}, 0))
	got, err := p.GetMulti(ctx, []string{"a", "b", "z"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	n, ok, err := p.IncrBy(ctx, "a", 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), n)

	require.NoError(t, p.DelMulti(ctx, []string{"a", "b", "z"}))
	got, err = p.GetMulti(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatsCountsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, err := p.Set(ctx, "k", []byte("v"), 1, 0)
	require.NoError(t, err)
	_, _, _ = p.Get(ctx, "k")
	_, _, _ = p.Get(ctx, "nope")

	hits, misses, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}
