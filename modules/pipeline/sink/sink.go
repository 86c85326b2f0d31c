// Package sink implements Stage 4: project each QualifiedProspect to a
// PendingUpdate and hand it to the external approval queue. Stage 4 never
// writes to the CRM of record directly.
package sink

import (
	"context"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
)

// Outcome is one QualifiedProspect's Stage 4 result: the PendingUpdate
// that was built and, on success, the id the queue assigned it.
type Outcome struct {
	Update   *model.PendingUpdate
	QueuedID string
	Err      error
}

// Stage4 runs the pending-update sink.
type Stage4 struct {
	Queue ports.PendingUpdateSink
}

// Run projects and enqueues every qualified prospect, in ranking order.
// A single enqueue failure does not stop the others — spec.md treats
// Stage 4 items independently; the orchestrator decides what a partial
// Stage 4 means for the overall run status.
func (s *Stage4) Run(ctx context.Context, runID string, qualified []*model.QualifiedProspect) []Outcome {
	outcomes := make([]Outcome, 0, len(qualified))
	for _, q := range qualified {
		update := &model.PendingUpdate{
			TargetType:  model.CRMRecordLead,
			AccountID:   runID,
			Fields:      model.FieldMapping(q, runID),
			OriginRunID: runID,
			Provenance:  []string{"stage3_qualify", "stage4_sink"},
		}

		queuedID, err := s.Queue.Enqueue(ctx, update)
		if err == nil {
			update.QueuedID = queuedID
		}
		outcomes = append(outcomes, Outcome{Update: update, QueuedID: queuedID, Err: err})
	}
	return outcomes
}
