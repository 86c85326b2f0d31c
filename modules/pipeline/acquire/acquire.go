// Package acquire implements Stage 1 candidate acquisition: the dataset
// path, the search path, and a combined form that runs both concurrently.
package acquire

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/benefis-partners/prospect-pipeline/internal/adapters/websearch"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/titles"
)

// Result is Stage 1's output contract: a deterministically-ordered,
// URL-deduped candidate list, plus the dataset snapshot id when the
// dataset path ran.
type Result struct {
	Candidates []*model.Candidate
	SnapshotID string
}

// DatasetPath runs only the dataset-filter adapter.
type DatasetPath struct {
	Filter ports.DatasetFilter
}

// Run submits the filter job and orders the returned candidates by
// canonical URL (spec §8: "Stage 1 orders by source priority then
// candidate-URL lex order" — a dataset-only run has one source, so URL
// order is the whole ordering). cityFilter, when non-empty, is passed
// through to the adapter's boolean filter expression.
func (p *DatasetPath) Run(ctx context.Context, names *model.CompanyNameSet, industryHint *string, cityFilter string) (*Result, error) {
	snapshotID, candidates, err := p.Filter.SubmitAndCollect(ctx, names, industryHint, cityFilter)
	if err != nil {
		return &Result{SnapshotID: snapshotID}, err
	}
	sortByURL(candidates)
	return &Result{Candidates: candidates, SnapshotID: snapshotID}, nil
}

// SearchPath runs only the web-search adapter across the (variant, title)
// cartesian product.
type SearchPath struct {
	Search ports.WebSearch
	Titles *titles.Set
}

// Run issues one query per (variant, title) pair, merges and dedupes
// results by canonical URL, and orders them lexically. A failure on any
// single query is not fatal to the stage: spec §4.A.2 treats the search
// path as best-effort across a query set, so Run collects whatever
// queries succeeded and returns the first error only if every query
// failed.
func (p *SearchPath) Run(ctx context.Context, names *model.CompanyNameSet, buildQuery func(variant, title string) string) (*Result, error) {
	var all []*model.Candidate
	var firstErr error
	attempted := 0

	for _, variant := range names.Variants() {
		for _, title := range p.Titles.Target {
			attempted++
			query := buildQuery(variant, title)
			candidates, err := p.Search.Search(ctx, query)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			all = append(all, candidates...)
		}
	}

	if len(all) == 0 && firstErr != nil && attempted > 0 {
		return &Result{}, firstErr
	}

	deduped := model.DedupeCandidates(all)
	sortByURL(deduped)
	return &Result{Candidates: deduped}, nil
}

// Combined runs DatasetPath and SearchPath concurrently and unions the
// results, per spec §4.C "Combined path."
type Combined struct {
	Dataset *DatasetPath
	SearchP *SearchPath
}

// Run executes both paths in parallel via errgroup. A dataset-path
// overflow error aborts the combined run immediately (spec: "abort stage 1
// ... do not download"); a search-path error does not, since the dataset
// path alone can still produce a valid result.
func (c *Combined) Run(ctx context.Context, names *model.CompanyNameSet, industryHint *string, cityFilter string, buildQuery func(variant, title string) string) (*Result, error) {
	var datasetResult, searchResult *Result
	var datasetErr, searchErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		datasetResult, datasetErr = c.Dataset.Run(gctx, names, industryHint, cityFilter)
		if se, ok := model.AsStageError(datasetErr); ok && se.Kind == model.ErrKindOverflow {
			return datasetErr
		}
		return nil
	})
	g.Go(func() error {
		searchResult, searchErr = c.SearchP.Run(gctx, names, buildQuery)
		return nil
	})

	if err := g.Wait(); err != nil {
		return &Result{}, err
	}

	merged := mergeBySourcePriority(datasetResult, searchResult)
	if len(merged) == 0 && datasetErr != nil && searchErr != nil {
		return &Result{}, datasetErr
	}

	out := &Result{Candidates: merged}
	if datasetResult != nil {
		out.SnapshotID = datasetResult.SnapshotID
	}
	return out, nil
}

func mergeBySourcePriority(dataset, search *Result) []*model.Candidate {
	var all []*model.Candidate
	if dataset != nil {
		all = append(all, dataset.Candidates...)
	}
	if search != nil {
		all = append(all, search.Candidates...)
	}
	deduped := model.DedupeCandidates(all)
	sort.SliceStable(deduped, func(i, j int) bool {
		pi, pj := sourcePriority(deduped[i].Source), sourcePriority(deduped[j].Source)
		if pi != pj {
			return pi < pj
		}
		return deduped[i].ProfileURL < deduped[j].ProfileURL
	})
	return deduped
}

func sourcePriority(s model.CandidateSource) int {
	if s == model.SourceDataset {
		return 0
	}
	return 1
}

func sortByURL(candidates []*model.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ProfileURL < candidates[j].ProfileURL
	})
}
