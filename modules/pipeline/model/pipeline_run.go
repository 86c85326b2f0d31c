package model

import "time"

// RunStatus is a PipelineRun's terminal status.
type RunStatus string

const (
	RunOK      RunStatus = "ok"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// RunMode selects which Stage 1 strategy an orchestrator invocation uses.
type RunMode string

const (
	ModeDataset  RunMode = "dataset"
	ModeSearch   RunMode = "search"
	ModeCombined RunMode = "combined"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    Stage
	Started  time.Time
	Finished time.Time
}

// Duration returns Finished.Sub(Started), or zero if the stage hasn't
// finished yet.
func (t StageTiming) Duration() time.Duration {
	if t.Finished.IsZero() {
		return 0
	}
	return t.Finished.Sub(t.Started)
}

// StageCounts records how many items a stage found/filtered/qualified.
type StageCounts struct {
	Found     int
	Filtered  int
	Qualified int
}

// RejectionRecord is a structured entry in Stage 2's rejection log: a
// rejected candidate's URL, the reason it failed, and supporting evidence.
type RejectionRecord struct {
	ProfileURL string
	Reason     string
	Evidence   string
}

// PipelineRun is the top-level, orchestrator-owned record of one
// end-to-end execution.
type PipelineRun struct {
	ID        string
	Account   AccountRef
	StartedAt time.Time
	EndedAt   time.Time
	Status    RunStatus

	Mode RunMode

	StageTimings map[Stage]StageTiming
	StageCounts  map[Stage]StageCounts
	StageCost    map[Stage]float64
	TotalCost    float64

	Stage1SnapshotID string // set only when the dataset path was used

	FirstError *StageError

	Stage1Candidates []*Candidate
	Stage2Profiles   []*QualifiedProspect // Candidate+Profile pairs, pre-ranking
	Stage2Rejections []RejectionRecord
	Stage3Qualified  []*QualifiedProspect
}

// NewPipelineRun creates a freshly-started PipelineRun for the given
// account and mode.
func NewPipelineRun(id string, account AccountRef, mode RunMode, startedAt time.Time) *PipelineRun {
	return &PipelineRun{
		ID:           id,
		Account:      account,
		Mode:         mode,
		StartedAt:    startedAt,
		Status:       RunPartial, // upgraded to RunOK only on clean completion
		StageTimings: make(map[Stage]StageTiming),
		StageCounts:  make(map[Stage]StageCounts),
		StageCost:    make(map[Stage]float64),
	}
}

// StartStage records the start time of a stage.
func (r *PipelineRun) StartStage(stage Stage, at time.Time) {
	r.StageTimings[stage] = StageTiming{Stage: stage, Started: at}
}

// FinishStage records the finish time of a stage already started.
func (r *PipelineRun) FinishStage(stage Stage, at time.Time) {
	t := r.StageTimings[stage]
	t.Stage = stage
	t.Finished = at
	r.StageTimings[stage] = t
}

// RecordCost adds to both the run total and that stage's running cost.
func (r *PipelineRun) RecordCost(stage Stage, cost float64) {
	r.TotalCost += cost
	r.StageCost[stage] += cost
}

// Finish sets EndedAt and the terminal status. A run with a FirstError can
// never finish RunOK.
func (r *PipelineRun) Finish(endedAt time.Time, status RunStatus) {
	r.EndedAt = endedAt
	if r.FirstError != nil && status == RunOK {
		status = RunPartial
	}
	r.Status = status
}
