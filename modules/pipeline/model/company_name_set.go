package model

import (
	"errors"
	"strings"
)

// ErrEmptyCompanyNameSet is returned when a CompanyNameSet would otherwise
// be constructed with zero entries — spec requires at least one.
var ErrEmptyCompanyNameSet = errors.New("company name set must not be empty")

// CompanyNameSet is an ordered list of plausible employer-name strings for
// an AccountRef, ordered by a priori likelihood of matching how employees
// self-describe their employer. It always contains the original name, is
// never empty, has no empty-string entries, and is de-duplicated
// case-insensitively.
type CompanyNameSet struct {
	variants []string
}

// NewCompanyNameSet builds a CompanyNameSet from candidate variants, always
// including originalName first. Returns ErrEmptyCompanyNameSet only if
// originalName itself is blank — every other case yields a non-empty set
// because originalName is always included.
func NewCompanyNameSet(originalName string, variants ...string) (*CompanyNameSet, error) {
	original := strings.TrimSpace(originalName)
	if original == "" {
		return nil, ErrEmptyCompanyNameSet
	}

	ordered := make([]string, 0, len(variants)+1)
	seen := make(map[string]struct{}, len(variants)+1)

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		ordered = append(ordered, v)
	}

	add(original)
	for _, v := range variants {
		add(v)
	}

	return &CompanyNameSet{variants: ordered}, nil
}

// Variants returns the ordered, de-duplicated list of name forms.
func (s *CompanyNameSet) Variants() []string {
	out := make([]string, len(s.variants))
	copy(out, s.variants)
	return out
}

// Len reports the number of variants in the set.
func (s *CompanyNameSet) Len() int {
	return len(s.variants)
}

// Original returns the first (original) entry.
func (s *CompanyNameSet) Original() string {
	if len(s.variants) == 0 {
		return ""
	}
	return s.variants[0]
}
