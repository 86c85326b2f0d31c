// Package approvalqueue implements ports.PendingUpdateSink over a Redis
// list, the same backing store the original implementation used for its
// background job queue (RQ over Redis). Stage 4 approval here is much
// lighter than a worker queue — there is no consumer in this repo, only a
// durable hand-off list an external approval system drains — so a plain
// LPUSH plus an idempotency set is enough, without pulling in a full job
// queue library.
package approvalqueue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

const (
	listKey       = "prospect-pipeline:pending-updates"
	seenKeyPrefix = "prospect-pipeline:pending-updates:seen:"
	seenTTL       = 30 * 24 * time.Hour
)

// Client implements ports.PendingUpdateSink over a Redis command
// interface — either *redis.Client or, in tests, a client pointed at a
// miniredis instance.
type Client struct {
	rdb redis.Cmdable
}

// New builds a Client.
func New(rdb redis.Cmdable) *Client {
	return &Client{rdb: rdb}
}

// Enqueue pushes update onto the approval list and returns the id it was
// assigned. The id is derived from the run it came from and the profile
// it targets, so a resumed run replaying a Stage 4 item it already sank
// is a no-op rather than a duplicate entry — ports.PendingUpdateSink's
// idempotency requirement.
func (c *Client) Enqueue(ctx context.Context, update *model.PendingUpdate) (string, error) {
	id := queuedID(update)

	seenKey := seenKeyPrefix + id
	added, err := c.rdb.SetNX(ctx, seenKey, "1", seenTTL).Result()
	if err != nil {
		return "", fmt.Errorf("approval queue dedupe: %w", err)
	}
	if !added {
		return id, nil
	}

	raw, err := json.Marshal(update)
	if err != nil {
		return "", fmt.Errorf("approval queue encode: %w", err)
	}
	if err := c.rdb.LPush(ctx, listKey, raw).Err(); err != nil {
		return "", fmt.Errorf("approval queue push: %w", err)
	}
	return id, nil
}

// queuedID derives a stable id from the fields that identify one Stage 4
// item: the run it came from and the profile URL it targets.
func queuedID(update *model.PendingUpdate) string {
	sum := sha256.Sum256([]byte(update.OriginRunID + "|" + update.Fields["profile_url"]))
	return hex.EncodeToString(sum[:])[:32]
}
