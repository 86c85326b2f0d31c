package model

// CandidateSource identifies which Stage 1 strategy produced a Candidate.
type CandidateSource string

const (
	SourceDataset CandidateSource = "dataset"
	SourceSearch  CandidateSource = "search"
)

// Candidate is a possible prospect discovered in Stage 1. ProfileURL is
// canonical (see CanonicalizeProfileURL) and is the primary key within a
// run: two Candidates with equal ProfileURL are the same person.
type Candidate struct {
	ProfileURL string
	Source     CandidateSource
	HasProfile bool
	Profile    *Profile // pre-filled when Source == dataset
	RawMeta    map[string]string
}

// Key returns the dedupe key for this candidate.
func (c *Candidate) Key() string {
	return c.ProfileURL
}

// DedupeCandidates dedupes a list of Candidates by canonical profile URL,
// preferring a dataset-sourced record over a search-sourced one when both
// exist for the same URL (dataset records are pre-enriched). Output order
// is stable: first occurrence order, with duplicates resolved in place.
func DedupeCandidates(candidates []*Candidate) []*Candidate {
	order := make([]string, 0, len(candidates))
	byKey := make(map[string]*Candidate, len(candidates))

	for _, c := range candidates {
		key := c.Key()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = c
			order = append(order, key)
			continue
		}
		if existing.Source != SourceDataset && c.Source == SourceDataset {
			byKey[key] = c
		}
	}

	out := make([]*Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}
