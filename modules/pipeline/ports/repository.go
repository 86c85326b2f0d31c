package ports

import (
	"context"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// RunStore persists PipelineRun state so a run can be resumed after a
// crash or a deliberate pause, and so completed runs can be replayed
// byte-for-byte for audit.
type RunStore interface {
	Save(ctx context.Context, run *model.PipelineRun) error
	GetByID(ctx context.Context, runID string) (*model.PipelineRun, error)
	List(ctx context.Context, accountID string, limit, offset int) ([]*model.PipelineRun, int, error)

	// SavePendingUpdate persists the sink's own copy of a PendingUpdate,
	// independent of whatever external queue Enqueue wrote to.
	SavePendingUpdate(ctx context.Context, runID string, update *model.PendingUpdate) error
}

// RunArchiver writes a finished PipelineRun's full stage-by-stage state to
// long-term object storage as a canonical JSON snapshot, independent of
// RunStore's row in Postgres. Nil is a valid Orchestrator.Archiver: archival
// is best-effort and its absence never fails a run.
type RunArchiver interface {
	Archive(ctx context.Context, run *model.PipelineRun) error
}
