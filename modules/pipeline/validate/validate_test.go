package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefis-partners/prospect-pipeline/internal/config"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/normalizer"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/titles"
)

type fakeScraper struct {
	profiles map[string]*model.Profile
	errs     map[string]error
}

func (f *fakeScraper) ScrapeMany(ctx context.Context, profileURLs []string) (map[string]*model.Profile, error) {
	out := make(map[string]*model.Profile)
	for _, url := range profileURLs {
		if _, failed := f.errs[url]; failed {
			continue
		}
		if profile, ok := f.profiles[url]; ok {
			out[url] = profile
		}
	}
	return out, nil
}

func testDefaults(t *testing.T) *config.PipelineDefaults {
	t.Helper()
	d, err := config.LoadPipelineDefaults()
	require.NoError(t, err)
	return d
}

func TestStage2_RejectsWrongCompany(t *testing.T) {
	defaults := testDefaults(t)
	det := normalizer.NewDeterministic(defaults)
	names, err := model.NewCompanyNameSet("Acme Health System")
	require.NoError(t, err)

	url := "https://profiles.example/mismatch"
	scraper := &fakeScraper{profiles: map[string]*model.Profile{
		url: {
			ProfileURL:      url,
			CurrentTitle:    "Chief Financial Officer",
			CurrentEmployer: "Totally Unrelated Corp",
			Connections:     600,
		},
	}}

	stage := &Stage2{
		Scraper:    scraper,
		Normalizer: det,
		Titles:     titles.FromDefaults(defaults),
		Options:    Options{MinConnections: 50},
	}

	candidate := &model.Candidate{ProfileURL: url, Source: model.SourceSearch}
	result := stage.Run(context.Background(), []*model.Candidate{candidate}, names)

	require.Empty(t, result.Survivors)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, reasonWrongCompany, result.Rejections[0].Reason)
}

func TestStage2_AcceptsMatchingEmployerAndTitle(t *testing.T) {
	defaults := testDefaults(t)
	det := normalizer.NewDeterministic(defaults)
	names, err := model.NewCompanyNameSet("Acme Health System")
	require.NoError(t, err)

	url := "https://profiles.example/match"
	scraper := &fakeScraper{profiles: map[string]*model.Profile{
		url: {
			ProfileURL:      url,
			CurrentTitle:    "Director of Facilities",
			CurrentEmployer: "Acme Health System",
			Connections:     600,
		},
	}}

	stage := &Stage2{
		Scraper:    scraper,
		Normalizer: det,
		Titles:     titles.FromDefaults(defaults),
		Options:    Options{MinConnections: 50},
	}

	candidate := &model.Candidate{ProfileURL: url, Source: model.SourceSearch}
	result := stage.Run(context.Background(), []*model.Candidate{candidate}, names)

	require.Len(t, result.Survivors, 1)
	assert.Empty(t, result.Rejections)
	assert.Equal(t, model.EmploymentExact, result.Survivors[0].EmploymentMatch)
}

func TestStage2_ScrapeFailureDropsCandidate(t *testing.T) {
	defaults := testDefaults(t)
	det := normalizer.NewDeterministic(defaults)
	names, err := model.NewCompanyNameSet("Acme Health System")
	require.NoError(t, err)

	url := "https://profiles.example/broken"
	scraper := &fakeScraper{errs: map[string]error{
		url: model.NewStageError(model.Stage2Validate, model.ErrKindTransport, "boom"),
	}}

	stage := &Stage2{
		Scraper:    scraper,
		Normalizer: det,
		Titles:     titles.FromDefaults(defaults),
		Options:    Options{MinConnections: 50},
	}

	candidate := &model.Candidate{ProfileURL: url, Source: model.SourceSearch}
	result := stage.Run(context.Background(), []*model.Candidate{candidate}, names)

	require.Empty(t, result.Survivors)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, reasonScrapeFailed, result.Rejections[0].Reason)
}
