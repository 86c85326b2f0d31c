package ports

import (
	"context"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// PendingUpdateSink is Stage 4's write path: it enqueues a PendingUpdate
// into whatever external approval queue the deployment uses, returning the
// id that queue assigned it. Enqueue must be idempotent on QueuedID when a
// resumed run replays a Stage 4 item it already sank.
type PendingUpdateSink interface {
	Enqueue(ctx context.Context, update *model.PendingUpdate) (queuedID string, err error)
}
