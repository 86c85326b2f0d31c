package companynamecache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb)
}

func TestClient_GetVariants_MissReturnsFalse(t *testing.T) {
	c := newTestClient(t)

	variants, ok, err := c.GetVariants(context.Background(), "Acme Health System")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, variants)
}

func TestClient_SetThenGetVariants_RoundTrips(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetVariants(ctx, "Acme Health System", []string{"Acme Health", "Acme Health Sys"}, time.Hour))

	variants, ok, err := c.GetVariants(ctx, "Acme Health System")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"Acme Health", "Acme Health Sys"}, variants)
}

func TestClient_VariantsAreKeyedByAccountID(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetVariants(ctx, "acct-1", []string{"A"}, time.Hour))

	_, ok, err := c.GetVariants(ctx, "acct-2")

	require.NoError(t, err)
	assert.False(t, ok)
}
