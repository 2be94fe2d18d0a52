package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts provider calls.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls atomic.Int64
	batchCalls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls.Add(1)
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitSkipsInner(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()

	ctx := context.Background()
	v1, err := cached.Embed(ctx, "list repositories")
	require.NoError(t, err)

	v2, err := cached.Embed(ctx, "list repositories")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.embedCalls.Load(), "second call must hit cache")
}

func TestCachedEmbedder_BatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()

	ctx := context.Background()
	warm, err := cached.Embed(ctx, "webhooks")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"pagination", "webhooks", "auth"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, warm, vecs[1])
	assert.Equal(t, int64(1), inner.batchCalls.Load())
	assert.Equal(t, 3, cached.Len())
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 2)
	defer cached.Close()

	ctx := context.Background()
	for _, q := range []string{"one", "two", "three"} {
		_, err := cached.Embed(ctx, q)
		require.NoError(t, err)
	}

	// "one" was evicted, re-embedding it goes to the provider again.
	_, err := cached.Embed(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, int64(4), inner.embedCalls.Load())
	assert.Equal(t, 2, cached.Len())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := NewStaticEmbedder()
	cached := NewCachedEmbedder(inner, 10)

	assert.Equal(t, inner.Dimensions(), cached.Dimensions())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, inner, cached.Inner())

	require.NoError(t, cached.Close())
	assert.False(t, cached.Available(context.Background()))
}
