package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache("svc").(*memoryCache)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	key := c.GenerateKey("mpesa_token", "abc")
	require.Equal(t, "svc:mpesa_token:abc", key)

	v, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, v)

	require.NoError(t, c.Set(ctx, key, "tok", time.Minute))
	v, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "tok", v)

	now = now.Add(time.Minute)
	v, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestMemoryCache_NoTTLNeverExpires(t *testing.T) {
	c := NewMemoryCache("svc")
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 42, 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "42", v)
}
