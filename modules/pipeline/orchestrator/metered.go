package orchestrator

import (
	"context"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
)

// Per-call cost estimates used by the admission gate. These are
// deliberately coarse approximations of real third-party billing (none of
// the adapters negotiate a metered price back from the vendor API), scaled
// so a handful of chargeable calls against a small cost ceiling in tests
// is enough to exercise refusal.
const (
	costDatasetFilterJob resilience.Cost = 5
	costSearchQuery      resilience.Cost = 0.5
	costScrapeCall       resilience.Cost = 1
	costGenerativeCall   resilience.Cost = 2
)

// meteredDatasetFilter reserves costDatasetFilterJob against the ceiling
// before delegating, per spec.md §5 "the orchestrator atomically
// increments a running cost counter before each chargeable adapter call."
type meteredDatasetFilter struct {
	inner   ports.DatasetFilter
	ceiling *resilience.Ceiling
}

func (m *meteredDatasetFilter) SubmitAndCollect(ctx context.Context, names *model.CompanyNameSet, industryHint *string, cityFilter string) (string, []*model.Candidate, error) {
	if err := m.ceiling.Reserve(model.Stage1Acquire, costDatasetFilterJob); err != nil {
		return "", nil, err
	}
	return m.inner.SubmitAndCollect(ctx, names, industryHint, cityFilter)
}

type meteredWebSearch struct {
	inner   ports.WebSearch
	ceiling *resilience.Ceiling
}

func (m *meteredWebSearch) Search(ctx context.Context, query string) ([]*model.Candidate, error) {
	if err := m.ceiling.Reserve(model.Stage1Acquire, costSearchQuery); err != nil {
		return nil, err
	}
	return m.inner.Search(ctx, query)
}

type meteredScraper struct {
	inner   ports.ProfileScraper
	ceiling *resilience.Ceiling
}

func (m *meteredScraper) ScrapeMany(ctx context.Context, profileURLs []string) (map[string]*model.Profile, error) {
	if err := m.ceiling.Reserve(model.Stage2Validate, costScrapeCall*resilience.Cost(len(profileURLs))); err != nil {
		return nil, err
	}
	return m.inner.ScrapeMany(ctx, profileURLs)
}

// meteredGenerativeText wraps ports.GenerativeText, tagging the admission
// failure with whichever stage is calling through it — the same adapter
// instance is shared by the normalizer (account resolution) and Stage 3.
type meteredGenerativeText struct {
	inner   ports.GenerativeText
	ceiling *resilience.Ceiling
	stage   model.Stage
}

func (m *meteredGenerativeText) Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	if err := m.ceiling.Reserve(m.stage, costGenerativeCall); err != nil {
		return nil, err
	}
	return m.inner.Complete(ctx, systemPrompt, userPrompt)
}
