// Package titles holds the decision-maker title vocabulary used by Stage 1
// acquisition and Stage 2's title-keyword filter, along with the
// whole-token matching rules spec.md §9 recommends in place of the
// source's substring matching (a COO whose bio mentions "care" must not be
// rejected as a clinical role).
package titles

import (
	"strings"

	"github.com/benefis-partners/prospect-pipeline/internal/config"
)

// Set is the title vocabulary for one pipeline configuration: the ordered
// list of target (decision-maker) titles, and the keyword list that
// excludes clinical/training roles.
type Set struct {
	Target   []string
	Negative []string
}

// FromDefaults builds a Set from parsed PipelineDefaults.
func FromDefaults(d *config.PipelineDefaults) *Set {
	return &Set{
		Target:   append([]string(nil), d.TargetTitles...),
		Negative: append([]string(nil), d.NegativeTitleKeywords...),
	}
}

// tokenize lowercases and splits on anything that isn't a letter or digit,
// so "Facilities Director" and "facilities-director" tokenize identically.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func tokenSet(s string) map[string]struct{} {
	toks := tokenize(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// hasTokenOverlap reports whether title shares at least one whole token
// with phrase (e.g. title "Facilities Director" overlaps phrase "Director
// of Facilities" on both "facilities" and "director").
func hasTokenOverlap(title, phrase string) bool {
	phraseToks := tokenize(phrase)
	if len(phraseToks) == 0 {
		return false
	}
	titleSet := tokenSet(title)
	for _, t := range phraseToks {
		if _, ok := titleSet[t]; ok {
			return true
		}
	}
	return false
}

// containsAllTokens reports whether every token of phrase appears
// somewhere in title — used for multi-word target titles where a partial
// token overlap (e.g. matching only "manager") would be too permissive.
func containsAllTokens(title, phrase string) bool {
	titleSet := tokenSet(title)
	for _, t := range tokenize(phrase) {
		if _, ok := titleSet[t]; !ok {
			return false
		}
	}
	return true
}

// MatchesTarget reports whether a profile title matches any entry in the
// target set. Matching requires every token of the target phrase be
// present in the candidate title, not merely one (spec §4.D step 6: "must
// match a weak positive keyword list").
func (s *Set) MatchesTarget(title string) bool {
	for _, want := range s.Target {
		if containsAllTokens(title, want) {
			return true
		}
	}
	return false
}

// MatchesNegative reports whether a profile title contains any negative
// keyword as a whole token — never as a substring, so "Chief Operating
// Officer, cares deeply about..." does not match "care".
func (s *Set) MatchesNegative(title string) bool {
	for _, bad := range s.Negative {
		if hasTokenOverlap(title, bad) {
			return true
		}
	}
	return false
}

// PassesTitleFilter implements spec §4.D step 6 in full: the title must
// match the target set and must not match the negative set.
func (s *Set) PassesTitleFilter(title string) bool {
	return s.MatchesTarget(title) && !s.MatchesNegative(title)
}
