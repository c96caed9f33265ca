package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorpos/backend/internal/domain"
)

func TestNoopCacheAlwaysMisses(t *testing.T) {
	var c ProductCache = NoopProductCache{}
	ctx := context.Background()

	require.NoError(t, c.SetProducts(ctx, []domain.Product{{ID: "p1"}}, time.Minute))
	_, ok, err := c.GetProducts(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestRedisProductCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("LIQUORPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set LIQUORPOS_TEST_REDIS_ADDR to run redis cache test")
	}

	ctx := context.Background()
	c := NewRedisProductCache(addr, "", 0)
	t.Cleanup(func() {
		_ = c.Invalidate(ctx)
		_ = c.Close()
	})
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Invalidate(ctx))

	_, ok, err := c.GetProducts(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []domain.Product{{ID: "prod-b1", SKU: "B1", Stock: 88, Status: domain.StatusInStock}}
	require.NoError(t, c.SetProducts(ctx, want, time.Minute))

	got, ok, err := c.GetProducts(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want[0].SKU, got[0].SKU)
	assert.Equal(t, want[0].Stock, got[0].Stock)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.GetProducts(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
