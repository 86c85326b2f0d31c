package approvalqueue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

func newTestClient(t *testing.T) (*Client, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb), rdb
}

func TestClient_Enqueue_PushesOntoList(t *testing.T) {
	c, rdb := newTestClient(t)
	ctx := context.Background()

	update := &model.PendingUpdate{
		OriginRunID: "run-1",
		Fields:      map[string]string{"profile_url": "https://profiles.example/jane"},
	}

	id, err := c.Enqueue(ctx, update)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	length, err := rdb.LLen(ctx, listKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}

func TestClient_Enqueue_SameItemTwiceIsIdempotent(t *testing.T) {
	c, rdb := newTestClient(t)
	ctx := context.Background()

	update := &model.PendingUpdate{
		OriginRunID: "run-1",
		Fields:      map[string]string{"profile_url": "https://profiles.example/jane"},
	}

	firstID, err := c.Enqueue(ctx, update)
	require.NoError(t, err)
	secondID, err := c.Enqueue(ctx, update)
	require.NoError(t, err)

	assert.Equal(t, firstID, secondID)

	length, err := rdb.LLen(ctx, listKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}

func TestClient_Enqueue_DifferentProfilesGetDifferentIDs(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	idA, err := c.Enqueue(ctx, &model.PendingUpdate{
		OriginRunID: "run-1",
		Fields:      map[string]string{"profile_url": "https://profiles.example/jane"},
	})
	require.NoError(t, err)

	idB, err := c.Enqueue(ctx, &model.PendingUpdate{
		OriginRunID: "run-1",
		Fields:      map[string]string{"profile_url": "https://profiles.example/john"},
	})
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)
}
