// Package orchestrator drives Stages 1 through 4, holding the
// PipelineRun, enforcing the per-run cost ceiling, and persisting
// per-stage artifacts so a run can be resumed or replayed. This is the
// only package in modules/pipeline that mutates a PipelineRun.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/metrics"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/notify"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/sentryhub"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/acquire"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/normalizer"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/qualify"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/sink"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/titles"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/validate"
)

// Orchestrator wires every component behind the three entry points
// spec.md §4.F describes. Every field is a dependency injected at
// construction, matching the teacher's service-struct convention (see
// modules/jobs/service/job_service.go's constructor-injected ports).
type Orchestrator struct {
	Resolver      ports.CrmReader
	Normalizer    normalizer.Normalizer
	DatasetFilter ports.DatasetFilter
	WebSearch     ports.WebSearch
	BuildQuery    func(variant, title string) string
	Titles        *titles.Set
	Scraper       ports.ProfileScraper
	Employer      *normalizer.Deterministic
	Text          ports.GenerativeText
	Queue         ports.PendingUpdateSink
	Store         ports.RunStore
	Archiver      ports.RunArchiver
	Metrics       *metrics.Registry
	Sentry        *sentryhub.Hub
	Notifier      *notify.Notifier
}

// Run executes the full account-id-to-Stage-4 path: resolve the account,
// normalize its name, run Stage 1 in the configured mode, then 2, 3, 4.
func (o *Orchestrator) Run(ctx context.Context, accountID string, opts Options) *model.PipelineRun {
	run := model.NewPipelineRun(uuid.NewString(), model.AccountRef{ID: accountID}, opts.Mode, time.Now())
	ceiling := resilience.NewCeiling(opts.CostCeiling)

	account, err := o.resolveAccount(ctx, run, accountID, opts)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	run.Account = *account

	names, err := o.Normalizer.Normalize(ctx, *account)
	if err != nil {
		return o.fail(ctx, run, model.NewStageError(model.StageAccountResolve, model.ErrKindBadResponse, "normalize company name: %v", err))
	}

	o.runStage1(ctx, run, names, opts, ceiling)
	if run.FirstError != nil && len(run.Stage1Candidates) == 0 {
		return o.finish(ctx, run)
	}

	o.runStage2(ctx, run, names, opts, ceiling)
	if run.FirstError != nil && len(run.Stage2Profiles) == 0 {
		return o.finish(ctx, run)
	}

	o.runStage3(ctx, run, opts, ceiling)

	o.runStage4(ctx, run, opts)

	return o.finish(ctx, run)
}

// DryRun runs through Stage 3 only — spec.md §4.F "do not enqueue pending
// updates."
func (o *Orchestrator) DryRun(ctx context.Context, accountID string, opts Options) *model.PipelineRun {
	run := model.NewPipelineRun(uuid.NewString(), model.AccountRef{ID: accountID}, opts.Mode, time.Now())
	ceiling := resilience.NewCeiling(opts.CostCeiling)

	account, err := o.resolveAccount(ctx, run, accountID, opts)
	if err != nil {
		return o.fail(ctx, run, err)
	}
	run.Account = *account

	names, err := o.Normalizer.Normalize(ctx, *account)
	if err != nil {
		return o.fail(ctx, run, model.NewStageError(model.StageAccountResolve, model.ErrKindBadResponse, "normalize company name: %v", err))
	}

	o.runStage1(ctx, run, names, opts, ceiling)
	if run.FirstError != nil && len(run.Stage1Candidates) == 0 {
		return o.finish(ctx, run)
	}

	o.runStage2(ctx, run, names, opts, ceiling)
	if run.FirstError != nil && len(run.Stage2Profiles) == 0 {
		return o.finish(ctx, run)
	}

	o.runStage3(ctx, run, opts, ceiling)

	return o.finish(ctx, run)
}

// Resume continues a previously persisted run from whichever stage
// artifacts it already has, per spec.md §4.F "Resume from stage K." The
// caller supplies the prior run record (as loaded from ports.RunStore);
// Resume mutates and returns the same record rather than starting a new
// PipelineRun id.
func (o *Orchestrator) Resume(ctx context.Context, run *model.PipelineRun, opts Options) *model.PipelineRun {
	ceiling := resilience.NewCeiling(opts.CostCeiling)
	run.FirstError = nil

	names, err := o.Normalizer.Normalize(ctx, run.Account)
	if err != nil {
		return o.fail(ctx, run, model.NewStageError(model.StageAccountResolve, model.ErrKindBadResponse, "normalize company name: %v", err))
	}

	if len(run.Stage1Candidates) == 0 {
		o.runStage1(ctx, run, names, opts, ceiling)
		if run.FirstError != nil && len(run.Stage1Candidates) == 0 {
			return o.finish(ctx, run)
		}
	}

	if len(run.Stage2Profiles) == 0 {
		o.runStage2(ctx, run, names, opts, ceiling)
		if run.FirstError != nil && len(run.Stage2Profiles) == 0 {
			return o.finish(ctx, run)
		}
	}

	if len(run.Stage3Qualified) == 0 {
		o.runStage3(ctx, run, opts, ceiling)
	}

	o.runStage4(ctx, run, opts)

	return o.finish(ctx, run)
}

func (o *Orchestrator) resolveAccount(ctx context.Context, run *model.PipelineRun, accountID string, opts Options) (*model.AccountRef, error) {
	run.StartStage(model.StageAccountResolve, time.Now())
	defer func() { run.FinishStage(model.StageAccountResolve, time.Now()) }()

	record, err := o.Resolver.GetAccount(ctx, accountID)
	if err != nil {
		return nil, translateAdapterErr(model.StageAccountResolve, err)
	}

	parentOverride, err := o.Resolver.GetParentName(ctx, accountID)
	if err != nil {
		parentOverride = nil // a stale denormalized parent name is not fatal
	}

	return record.ToAccountRef(opts.IndustryHint, parentOverride), nil
}

func (o *Orchestrator) runStage1(ctx context.Context, run *model.PipelineRun, names *model.CompanyNameSet, opts Options, ceiling *resilience.Ceiling) {
	run.StartStage(model.Stage1Acquire, time.Now())
	ctx, cancel := context.WithTimeout(ctx, orTimeout(opts.StageTimeouts.Acquire, DefaultStageTimeouts.Acquire))
	defer cancel()
	defer func() { run.FinishStage(model.Stage1Acquire, time.Now()) }()

	dataset := &meteredDatasetFilter{inner: o.DatasetFilter, ceiling: ceiling}
	search := &meteredWebSearch{inner: o.WebSearch, ceiling: ceiling}

	var result *acquire.Result
	var err error

	switch opts.Mode {
	case model.ModeDataset:
		result, err = (&acquire.DatasetPath{Filter: dataset}).Run(ctx, names, opts.IndustryHint, cityFilter(opts))
	case model.ModeSearch:
		result, err = (&acquire.SearchPath{Search: search, Titles: o.Titles}).Run(ctx, names, o.BuildQuery)
	default:
		combined := &acquire.Combined{
			Dataset: &acquire.DatasetPath{Filter: dataset},
			SearchP: &acquire.SearchPath{Search: search, Titles: o.Titles},
		}
		result, err = combined.Run(ctx, names, opts.IndustryHint, cityFilter(opts), o.BuildQuery)
	}

	o.observeStage(model.Stage1Acquire, run, err)

	if result != nil {
		run.Stage1Candidates = result.Candidates
		run.Stage1SnapshotID = result.SnapshotID
		counts := run.StageCounts[model.Stage1Acquire]
		counts.Found = len(result.Candidates)
		run.StageCounts[model.Stage1Acquire] = counts
	}
	if err != nil {
		o.recordStageError(run, model.Stage1Acquire, err)
	}
}

func (o *Orchestrator) runStage2(ctx context.Context, run *model.PipelineRun, names *model.CompanyNameSet, opts Options, ceiling *resilience.Ceiling) {
	run.StartStage(model.Stage2Validate, time.Now())
	ctx, cancel := context.WithTimeout(ctx, orTimeout(opts.StageTimeouts.Validate, DefaultStageTimeouts.Validate))
	defer cancel()
	defer func() { run.FinishStage(model.Stage2Validate, time.Now()) }()

	stage := &validate.Stage2{
		Scraper:    &meteredScraper{inner: o.Scraper, ceiling: ceiling},
		Normalizer: o.Employer,
		Titles:     o.Titles,
		Options: validate.Options{
			MinConnections: opts.MinConnections,
			CityFilter:     cityFilter(opts),
			RegionFilter:   regionFilter(opts),
		},
	}

	result := stage.Run(ctx, run.Stage1Candidates, names)

	run.Stage2Rejections = result.Rejections
	run.Stage2Profiles = make([]*model.QualifiedProspect, 0, len(result.Survivors))
	for _, sv := range result.Survivors {
		run.Stage2Profiles = append(run.Stage2Profiles, &model.QualifiedProspect{
			Candidate:       sv.Candidate,
			Profile:         sv.Profile,
			EmploymentMatch: sv.EmploymentMatch,
		})
	}

	counts := run.StageCounts[model.Stage2Validate]
	counts.Filtered = len(result.Survivors)
	run.StageCounts[model.Stage2Validate] = counts

	o.observeStage(model.Stage2Validate, run, nil)
}

func (o *Orchestrator) runStage3(ctx context.Context, run *model.PipelineRun, opts Options, ceiling *resilience.Ceiling) {
	run.StartStage(model.Stage3Qualify, time.Now())
	ctx, cancel := context.WithTimeout(ctx, orTimeout(opts.StageTimeouts.Qualify, DefaultStageTimeouts.Qualify))
	defer cancel()
	defer func() { run.FinishStage(model.Stage3Qualify, time.Now()) }()

	survivors := stage2Survivors(run)
	if len(survivors) == 0 {
		o.observeStage(model.Stage3Qualify, run, nil)
		return
	}

	text := &meteredGenerativeText{inner: o.Text, ceiling: ceiling, stage: model.Stage3Qualify}
	stage := &qualify.Stage3{Text: text, Options: qualify.Options{Threshold: opts.MinScore, TopM: opts.MaxProspects}}

	qualified, stageErr := stage.Run(ctx, run.Account.Name, survivors)

	o.observeStage(model.Stage3Qualify, run, errFromStageErr(stageErr))

	run.Stage3Qualified = qualified
	counts := run.StageCounts[model.Stage3Qualify]
	counts.Qualified = len(qualified)
	run.StageCounts[model.Stage3Qualify] = counts

	if stageErr != nil {
		o.recordStageError(run, model.Stage3Qualify, stageErr)
	}
}

func (o *Orchestrator) runStage4(ctx context.Context, run *model.PipelineRun, opts Options) {
	if len(run.Stage3Qualified) == 0 {
		return
	}

	run.StartStage(model.Stage4Sink, time.Now())
	timeoutCtx, cancel := context.WithTimeout(ctx, orTimeout(opts.StageTimeouts.Sink, DefaultStageTimeouts.Sink))
	defer cancel()
	defer func() { run.FinishStage(model.Stage4Sink, time.Now()) }()

	stage := &sink.Stage4{Queue: o.Queue}
	outcomes := stage.Run(timeoutCtx, run.ID, run.Stage3Qualified)

	enqueued := 0
	for _, outcome := range outcomes {
		if o.Store != nil {
			_ = o.Store.SavePendingUpdate(timeoutCtx, run.ID, outcome.Update)
		}
		if outcome.Err == nil {
			enqueued++
			continue
		}
		if run.FirstError == nil {
			run.FirstError = model.NewStageError(model.Stage4Sink, model.ErrKindTransport, "%v", outcome.Err)
		}
	}

	o.observeStage(model.Stage4Sink, run, nil)

	if enqueued > 0 && o.Notifier != nil {
		_ = o.Notifier.BatchReady(timeoutCtx, run.ID, run.Account.Name, enqueued)
	}
}

func (o *Orchestrator) finish(ctx context.Context, run *model.PipelineRun) *model.PipelineRun {
	status := model.RunOK
	if run.FirstError != nil {
		status = model.RunPartial
		if run.FirstError.Kind == model.ErrKindCancelled {
			status = model.RunFailed
		}
	}
	run.Finish(time.Now(), status)

	if o.Metrics != nil {
		o.Metrics.SetRunCost(run.Account.ID, run.TotalCost)
	}
	if o.Store != nil {
		_ = o.Store.Save(ctx, run)
	}
	if o.Archiver != nil {
		_ = o.Archiver.Archive(ctx, run)
	}
	return run
}

func (o *Orchestrator) fail(ctx context.Context, run *model.PipelineRun, err error) *model.PipelineRun {
	se, ok := model.AsStageError(err)
	if !ok {
		se = model.NewStageError(model.StageAccountResolve, model.ErrKindTransport, "%v", err)
	}
	run.FirstError = se
	if o.Sentry != nil && se.Kind != model.ErrKindCancelled {
		o.Sentry.ReportFatal(run.ID, string(se.Stage), se)
	}
	return o.finish(ctx, run)
}

func (o *Orchestrator) recordStageError(run *model.PipelineRun, stage model.Stage, err error) {
	se, ok := model.AsStageError(err)
	if !ok {
		se = model.NewStageError(stage, model.ErrKindTransport, "%v", err)
	}
	if run.FirstError == nil {
		run.FirstError = se
	}
}

func (o *Orchestrator) observeStage(stage model.Stage, run *model.PipelineRun, err error) {
	if o.Metrics == nil {
		return
	}
	timing := run.StageTimings[stage]
	outcome := "ok"
	if se, ok := model.AsStageError(err); ok {
		outcome = string(se.Kind)
	}
	o.Metrics.ObserveStage(stage, time.Since(timing.Started).Seconds(), outcome)
}

func stage2Survivors(run *model.PipelineRun) []*validate.Survivor {
	survivors := make([]*validate.Survivor, 0, len(run.Stage2Profiles))
	for _, p := range run.Stage2Profiles {
		survivors = append(survivors, &validate.Survivor{Candidate: p.Candidate, Profile: p.Profile, EmploymentMatch: p.EmploymentMatch})
	}
	return survivors
}

func errFromStageErr(se *model.StageError) error {
	if se == nil {
		return nil
	}
	return se
}

func cityFilter(opts Options) string {
	if !opts.UseLocationFilter {
		return ""
	}
	return opts.CityFilter
}

func regionFilter(opts Options) string {
	if !opts.UseLocationFilter {
		return ""
	}
	return opts.RegionFilter
}

func orTimeout(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func translateAdapterErr(stage model.Stage, err error) error {
	if se, ok := model.AsStageError(err); ok {
		return se
	}
	return model.NewStageError(stage, model.ErrKindTransport, "%v", err)
}
