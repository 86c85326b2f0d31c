// Package normalizer builds the set of plausible employer-name strings for
// an account: the generative form (an LLM asked for LinkedIn-style
// variations), a deterministic fallback, and a composing wrapper that
// tries the former and falls back to the latter.
package normalizer

import (
	"context"
	"regexp"
	"strings"

	"github.com/benefis-partners/prospect-pipeline/internal/config"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// Deterministic is the rule-based fallback normalizer: no external call,
// no cost, always succeeds. Grounded on the source's
// normalize_company_name_fallback — legal-suffix stripping, St/Saint
// expansion, first-two-token shortening.
type Deterministic struct {
	legalSuffixes []*regexp.Regexp
	saintForms    []config.SaintForm
}

// NewDeterministic compiles the legal-suffix patterns once at construction.
func NewDeterministic(d *config.PipelineDefaults) *Deterministic {
	patterns := make([]*regexp.Regexp, 0, len(d.LegalSuffixes))
	for _, s := range d.LegalSuffixes {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(s)+`\.?\b`))
	}
	return &Deterministic{legalSuffixes: patterns, saintForms: d.SaintForms}
}

// Normalize builds a CompanyNameSet from account.Name alone: the original
// name, the suffix-stripped form, the saint-expanded form, and the
// first-two-token form — each added only if it differs from what's
// already in the set.
func (d *Deterministic) Normalize(_ context.Context, account model.AccountRef) (*model.CompanyNameSet, error) {
	original := account.Name

	stripped := original
	for _, re := range d.legalSuffixes {
		stripped = re.ReplaceAllString(stripped, "")
	}
	stripped = strings.Trim(strings.Join(strings.Fields(stripped), " "), " ,&-")

	variants := make([]string, 0, 4)
	if stripped != "" && !strings.EqualFold(stripped, original) {
		variants = append(variants, stripped)
	}

	saint := d.expandSaint(original)
	if saint != "" && !strings.EqualFold(saint, original) {
		variants = append(variants, saint)
	}

	base := stripped
	if base == "" {
		base = original
	}
	words := strings.Fields(base)
	if len(words) >= 2 {
		variants = append(variants, strings.Join(words[:2], " "))
	}

	return model.NewCompanyNameSet(original, variants...)
}

func (d *Deterministic) expandSaint(name string) string {
	expanded := name
	changed := false
	for _, f := range d.saintForms {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(f.From) + `\.?\s`)
		if re.MatchString(expanded) {
			expanded = re.ReplaceAllString(expanded, f.To+" ")
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return expanded
}

var punctuation = regexp.MustCompile(`[^\w\s]`)

// strip lowercases name, collapses punctuation and whitespace, and removes
// legal suffixes — the normalization spec.md §4.D step 3 requires before
// comparing an employer string against a CompanyNameSet.
func (d *Deterministic) strip(name string) string {
	s := strings.ToLower(name)
	for _, re := range d.legalSuffixes {
		s = re.ReplaceAllString(s, "")
	}
	s = punctuation.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// MatchesEmployer implements spec.md §4.D step 3: the employer string,
// normalized, must share a whole-token overlap with at least one
// CompanyNameSet variant or its saint-expanded form.
func (d *Deterministic) MatchesEmployer(employer string, names *model.CompanyNameSet) bool {
	return d.ClassifyEmployer(employer, names) != model.EmploymentNoMatch
}

// ClassifyEmployer reports the confidence tier of an employer-string
// match — grounded on the original's company_match_type classification
// (exact_match/variation/subsidiary), simplified per spec.md §4.E to the
// two tiers the qualification bonus table actually uses: exact (stripped
// forms are identical), variant (token overlap only), or no match at all.
func (d *Deterministic) ClassifyEmployer(employer string, names *model.CompanyNameSet) model.EmploymentMatch {
	strippedEmployer := d.strip(employer)
	employerTokens := tokenSet(strippedEmployer)
	if len(employerTokens) == 0 {
		return model.EmploymentNoMatch
	}

	best := model.EmploymentNoMatch
	for _, variant := range names.Variants() {
		candidates := []string{variant}
		if saint := d.expandSaint(variant); saint != "" {
			candidates = append(candidates, saint)
		}
		for _, c := range candidates {
			strippedVariant := d.strip(c)
			if strippedVariant == strippedEmployer {
				return model.EmploymentExact
			}
			if hasOverlap(employerTokens, tokenSet(strippedVariant)) {
				best = model.EmploymentVariant
			}
		}
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

func hasOverlap(a, b map[string]struct{}) bool {
	for t := range a {
		if _, ok := b[t]; ok {
			return true
		}
	}
	return false
}
