// Package validate implements Stage 2: dedupe, scrape missing profiles,
// then the deterministic employment/location/connections/title filters, in
// that fixed order, as a single pass (no duplicated branches).
package validate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/normalizer"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/titles"
)

const (
	reasonWrongCompany  = "wrong_company"
	reasonWrongLocation = "wrong_location"
	reasonLowNetwork    = "low_network"
	reasonNonTargetRole = "non_target_role"
	reasonScrapeFailed  = "scrape_failed"
)

// Options configures Stage2.
type Options struct {
	MinConnections int
	CityFilter     string // empty disables the location filter
	RegionFilter   string
}

// Survivor pairs a surviving Candidate with its Profile and the
// employment-match confidence the qualifier's bonus table consumes.
type Survivor struct {
	Candidate       *model.Candidate
	Profile         *model.Profile
	EmploymentMatch model.EmploymentMatch
}

// Result is Stage 2's output contract.
type Result struct {
	Survivors  []*Survivor
	Rejections []model.RejectionRecord
}

// Stage2 runs the single Stage 2 validation pipeline.
type Stage2 struct {
	Scraper       ports.ProfileScraper
	Normalizer    *normalizer.Deterministic
	Titles        *titles.Set
	Options       Options
}

// Run executes dedupe -> scrape -> filters, preserving Stage 1 order for
// survivors (spec §8: "Stage 2 preserves Stage 1 order"). Every deduped
// candidate still lacking a profile is sent to the scraper adapter in a
// single ScrapeMany batch (spec §4.D step 2); the filter pass afterward is
// sequential and order-preserving.
func (s *Stage2) Run(ctx context.Context, candidates []*model.Candidate, names *model.CompanyNameSet) *Result {
	deduped := model.DedupeCandidates(candidates)
	profiles, scrapeErrs := s.scrapeAll(ctx, deduped)

	result := &Result{}
	for i, c := range deduped {
		if scrapeErrs[i] != nil {
			result.Rejections = append(result.Rejections, model.RejectionRecord{
				ProfileURL: c.ProfileURL, Reason: reasonScrapeFailed, Evidence: scrapeErrs[i].Error(),
			})
			continue
		}
		profile := profiles[i]
		profile.ReconcileCurrentEmployment()
		profile.ComputeDerivedScores()

		matchKind := s.Normalizer.ClassifyEmployer(profile.CurrentEmployer, names)
		if matchKind == model.EmploymentNoMatch {
			result.Rejections = append(result.Rejections, model.RejectionRecord{
				ProfileURL: c.ProfileURL, Reason: reasonWrongCompany, Evidence: profile.CurrentEmployer,
			})
			continue
		}

		if s.Options.CityFilter != "" || s.Options.RegionFilter != "" {
			if !matchesLocation(profile.Location.Raw, s.Options.CityFilter, s.Options.RegionFilter) {
				result.Rejections = append(result.Rejections, model.RejectionRecord{
					ProfileURL: c.ProfileURL, Reason: reasonWrongLocation, Evidence: profile.Location.Raw,
				})
				continue
			}
		}

		if profile.Connections < s.Options.MinConnections {
			result.Rejections = append(result.Rejections, model.RejectionRecord{
				ProfileURL: c.ProfileURL, Reason: reasonLowNetwork, Evidence: strconv.Itoa(profile.Connections),
			})
			continue
		}

		if !s.Titles.PassesTitleFilter(profile.CurrentTitle) {
			result.Rejections = append(result.Rejections, model.RejectionRecord{
				ProfileURL: c.ProfileURL, Reason: reasonNonTargetRole, Evidence: profile.CurrentTitle,
			})
			continue
		}

		c.Profile = profile
		c.HasProfile = true
		result.Survivors = append(result.Survivors, &Survivor{Candidate: c, Profile: profile, EmploymentMatch: matchKind})
	}

	return result
}

// scrapeAll resolves a Profile for every candidate, sending every
// candidate still lacking one to the scraper adapter as a single
// ScrapeMany batch. Results are returned index-aligned with candidates so
// callers can rebuild Stage 1 order without any locking of their own.
func (s *Stage2) scrapeAll(ctx context.Context, candidates []*model.Candidate) ([]*model.Profile, []error) {
	profiles := make([]*model.Profile, len(candidates))
	errs := make([]error, len(candidates))

	var toScrape []string
	indicesByURL := make(map[string][]int)
	for i, c := range candidates {
		if c.HasProfile && c.Profile != nil {
			profiles[i] = c.Profile
			continue
		}
		if _, seen := indicesByURL[c.ProfileURL]; !seen {
			toScrape = append(toScrape, c.ProfileURL)
		}
		indicesByURL[c.ProfileURL] = append(indicesByURL[c.ProfileURL], i)
	}
	if len(toScrape) == 0 {
		return profiles, errs
	}

	scraped, err := s.Scraper.ScrapeMany(ctx, toScrape)
	if err != nil {
		for _, indices := range indicesByURL {
			for _, i := range indices {
				errs[i] = err
			}
		}
		return profiles, errs
	}

	for url, indices := range indicesByURL {
		profile, ok := scraped[url]
		for _, i := range indices {
			if !ok || profile == nil {
				errs[i] = fmt.Errorf("profile scrape: no result for %s", url)
				continue
			}
			profiles[i] = profile
		}
	}

	return profiles, errs
}

func matchesLocation(location, city, region string) bool {
	lower := strings.ToLower(location)
	if city != "" && strings.Contains(lower, strings.ToLower(city)) {
		return true
	}
	if region != "" && strings.Contains(lower, strings.ToLower(region)) {
		return true
	}
	return false
}
