// Package runarchive implements ports.RunArchiver over object storage,
// writing each finished PipelineRun as a canonical JSON snapshot keyed by
// account and run id so a run can be replayed byte-for-byte outside the
// database.
package runarchive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// objectStore is the subset of storage.S3Client this adapter needs, narrowed
// the way the rest of modules/pipeline narrows its adapter dependencies.
type objectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// Client implements ports.RunArchiver over an objectStore.
type Client struct {
	store objectStore
}

// New builds a Client over the given object store.
func New(store objectStore) *Client {
	return &Client{store: store}
}

// Archive writes run as indented JSON to
// runs/<account-id>/<run-id>.json. Archival failing never fails the run
// that produced the snapshot — callers log the error and move on.
func (c *Client) Archive(ctx context.Context, run *model.PipelineRun) error {
	body, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run snapshot: %w", err)
	}

	key := fmt.Sprintf("runs/%s/%s.json", run.Account.ID, run.ID)
	if err := c.store.PutObject(ctx, key, body, "application/json"); err != nil {
		return fmt.Errorf("archive run %s: %w", run.ID, err)
	}
	return nil
}
