package ports

import (
	"context"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// DatasetFilter is Stage 1's dataset path: it submits a company-scoped
// filter job against a pre-crawled professional-network dataset, polls it
// to completion, and returns the resulting candidate rows. Implementations
// own all submit/poll/download mechanics and retry/backoff internally;
// callers only ever see a terminal result or a *model.StageError.
type DatasetFilter interface {
	// SubmitAndCollect runs one dataset filter job end to end for the given
	// company name variants, returning the snapshot id it ran under (for
	// Stage1SnapshotID) alongside the raw candidates. cityFilter, when
	// non-empty, is added to the dataset's boolean filter expression as an
	// additional "location includes" term (spec.md §4.A.1); an empty string
	// leaves location unconstrained, same as omitting industryHint.
	SubmitAndCollect(ctx context.Context, names *model.CompanyNameSet, industryHint *string, cityFilter string) (snapshotID string, candidates []*model.Candidate, err error)
}

// WebSearch is Stage 1's search path: it runs a cartesian set of
// title×company search queries and returns the profile URLs found, each
// still lacking an attached Profile (HasProfile == false).
type WebSearch interface {
	Search(ctx context.Context, query string) ([]*model.Candidate, error)
}

// ProfileScraper enriches bare profile URLs into full Profiles. Stage 2
// sends every deduped candidate lacking a profile to ScrapeMany in a
// single batch call, per spec.md §4.D step 2; an adapter with no batch
// endpoint of its own fans the batch out into per-URL calls internally
// (spec.md §5) rather than Stage 2 doing that fan-out itself. A URL
// missing from the returned map is treated as a scrape failure for that
// URL, independent of the call's overall error return.
type ProfileScraper interface {
	ScrapeMany(ctx context.Context, profileURLs []string) (map[string]*model.Profile, error)
}

// GenerativeText is the one call type every generative consumer (the
// company-name normalizer, Stage 3's qualifier) builds on: given a system
// prompt and a user prompt, return a JSON object's raw bytes. The adapter
// is responsible for forcing JSON-object response mode on the underlying
// model; callers are responsible for decoding that JSON strictly into
// their own schema and surfacing a decode failure as ErrKindParseError.
type GenerativeText interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (jsonBody []byte, err error)
}

// CrmReader is the only CRM-facing port the core depends on for read
// access: resolving an account and, when the denormalized parent-name
// field might be stale, looking up the current one.
type CrmReader interface {
	GetAccount(ctx context.Context, accountID string) (*model.AccountRecord, error)
	GetParentName(ctx context.Context, accountID string) (*string, error)
}
