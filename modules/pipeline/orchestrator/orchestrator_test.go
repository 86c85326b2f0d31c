package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefis-partners/prospect-pipeline/internal/config"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/normalizer"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/titles"
)

type fakeCrm struct {
	account *model.AccountRecord
	err     error
}

func (f *fakeCrm) GetAccount(ctx context.Context, accountID string) (*model.AccountRecord, error) {
	return f.account, f.err
}
func (f *fakeCrm) GetParentName(ctx context.Context, accountID string) (*string, error) {
	return nil, nil
}

type fakeDatasetFilter struct {
	candidates []*model.Candidate
	err        error
}

func (f *fakeDatasetFilter) SubmitAndCollect(ctx context.Context, names *model.CompanyNameSet, industryHint *string, cityFilter string) (string, []*model.Candidate, error) {
	return "snap-1", f.candidates, f.err
}

type fakeWebSearch struct{}

func (f *fakeWebSearch) Search(ctx context.Context, query string) ([]*model.Candidate, error) {
	return nil, nil
}

type fakeScraper struct {
	profiles map[string]*model.Profile
}

func (f *fakeScraper) ScrapeMany(ctx context.Context, profileURLs []string) (map[string]*model.Profile, error) {
	out := make(map[string]*model.Profile)
	for _, url := range profileURLs {
		if p, ok := f.profiles[url]; ok {
			out[url] = p
		}
	}
	return out, nil
}

type fakeText struct {
	response []byte
}

func (f *fakeText) Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	return f.response, nil
}

type fakeQueue struct {
	enqueued int
}

func (f *fakeQueue) Enqueue(ctx context.Context, update *model.PendingUpdate) (string, error) {
	f.enqueued++
	return "queued-1", nil
}

// deterministicOnlyNormalizer bypasses normalizer.WithFallback's generative
// step (which needs a live GenerativeText adapter) so orchestrator tests
// can inject deterministic company-name normalization directly.
type deterministicOnlyNormalizer struct {
	det *normalizer.Deterministic
}

func (d *deterministicOnlyNormalizer) Normalize(ctx context.Context, account model.AccountRef) (*model.CompanyNameSet, error) {
	return d.det.Normalize(ctx, account)
}

func TestOrchestrator_Run_HappyPath(t *testing.T) {
	defaults, err := config.LoadPipelineDefaults()
	require.NoError(t, err)

	url := "https://profiles.example/jane"
	dataset := &fakeDatasetFilter{candidates: []*model.Candidate{
		{ProfileURL: url, Source: model.SourceDataset},
	}}
	scraper := &fakeScraper{profiles: map[string]*model.Profile{
		url: {
			ProfileURL:      url,
			FullName:        "Jane Doe",
			CurrentTitle:    "Director of Facilities",
			CurrentEmployer: "Acme Health System",
			Connections:     600,
			HasConnections:  true,
		},
	}}
	text := &fakeText{response: []byte(`{"prospects":[{"index":0,"score":80,"persona_tag":"facilities-decision-maker","rationale":"strong fit"}]}`)}
	queue := &fakeQueue{}

	o := &Orchestrator{
		Resolver:      &fakeCrm{account: &model.AccountRecord{ID: "acct-1", Name: "Acme Health System"}},
		Normalizer:    &deterministicOnlyNormalizer{det: normalizer.NewDeterministic(defaults)},
		DatasetFilter: dataset,
		WebSearch:     &fakeWebSearch{},
		BuildQuery:    func(variant, title string) string { return variant + " " + title },
		Titles:        titles.FromDefaults(defaults),
		Scraper:       scraper,
		Employer:      normalizer.NewDeterministic(defaults),
		Text:          text,
		Queue:         queue,
	}

	run := o.Run(context.Background(), "acct-1", func() Options {
		opts := DefaultOptions()
		opts.Mode = model.ModeDataset
		opts.MinConnections = 50
		return opts
	}())

	require.Nil(t, run.FirstError)
	assert.Equal(t, model.RunOK, run.Status)
	require.Len(t, run.Stage3Qualified, 1)
	assert.Equal(t, 85, run.Stage3Qualified[0].Score) // 80 + 5 exact-match bonus
	assert.Equal(t, 1, queue.enqueued)
}

func TestOrchestrator_Run_CostCeilingExhaustedMarksPartial(t *testing.T) {
	defaults, err := config.LoadPipelineDefaults()
	require.NoError(t, err)

	dataset := &fakeDatasetFilter{candidates: nil}
	o := &Orchestrator{
		Resolver:      &fakeCrm{account: &model.AccountRecord{ID: "acct-1", Name: "Acme Health System"}},
		Normalizer:    &deterministicOnlyNormalizer{det: normalizer.NewDeterministic(defaults)},
		DatasetFilter: dataset,
		WebSearch:     &fakeWebSearch{},
		BuildQuery:    func(variant, title string) string { return variant + " " + title },
		Titles:        titles.FromDefaults(defaults),
		Scraper:       &fakeScraper{profiles: map[string]*model.Profile{}},
		Employer:      normalizer.NewDeterministic(defaults),
		Text:          &fakeText{},
		Queue:         &fakeQueue{},
	}

	opts := DefaultOptions()
	opts.Mode = model.ModeDataset
	opts.CostCeiling = 1 // less than costDatasetFilterJob (5): the first call is refused outright

	run := o.Run(context.Background(), "acct-1", opts)

	require.NotNil(t, run.FirstError)
	assert.Equal(t, model.ErrKindBudgetExhausted, run.FirstError.Kind)
	assert.Equal(t, model.RunPartial, run.Status)
}

func TestOrchestrator_Run_AccountResolveFailureFailsFast(t *testing.T) {
	defaults, err := config.LoadPipelineDefaults()
	require.NoError(t, err)

	o := &Orchestrator{
		Resolver:   &fakeCrm{err: errors.New("crm unavailable")},
		Normalizer: &deterministicOnlyNormalizer{det: normalizer.NewDeterministic(defaults)},
		Titles:     titles.FromDefaults(defaults),
		Employer:   normalizer.NewDeterministic(defaults),
	}

	run := o.Run(context.Background(), "acct-1", DefaultOptions())

	require.NotNil(t, run.FirstError)
	assert.Equal(t, model.StageAccountResolve, run.FirstError.Stage)
	assert.Empty(t, run.Stage1Candidates)
}

func TestOrchestrator_DryRun_DoesNotEnqueue(t *testing.T) {
	defaults, err := config.LoadPipelineDefaults()
	require.NoError(t, err)

	url := "https://profiles.example/jane"
	dataset := &fakeDatasetFilter{candidates: []*model.Candidate{{ProfileURL: url, Source: model.SourceDataset}}}
	scraper := &fakeScraper{profiles: map[string]*model.Profile{
		url: {ProfileURL: url, FullName: "Jane Doe", CurrentTitle: "Director of Facilities", CurrentEmployer: "Acme Health System", Connections: 600, HasConnections: true},
	}}
	text := &fakeText{response: []byte(`{"prospects":[{"index":0,"score":90,"persona_tag":"facilities-decision-maker","rationale":"x"}]}`)}
	queue := &fakeQueue{}

	o := &Orchestrator{
		Resolver:      &fakeCrm{account: &model.AccountRecord{ID: "acct-1", Name: "Acme Health System"}},
		Normalizer:    &deterministicOnlyNormalizer{det: normalizer.NewDeterministic(defaults)},
		DatasetFilter: dataset,
		WebSearch:     &fakeWebSearch{},
		BuildQuery:    func(variant, title string) string { return variant + " " + title },
		Titles:        titles.FromDefaults(defaults),
		Scraper:       scraper,
		Employer:      normalizer.NewDeterministic(defaults),
		Text:          text,
		Queue:         queue,
	}

	opts := DefaultOptions()
	opts.Mode = model.ModeDataset
	opts.MinConnections = 50

	run := o.DryRun(context.Background(), "acct-1", opts)

	require.Nil(t, run.FirstError)
	require.Len(t, run.Stage3Qualified, 1)
	assert.Equal(t, 0, queue.enqueued)
}

