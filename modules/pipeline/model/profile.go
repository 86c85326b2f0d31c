package model

import "strings"

// ExperienceEntry is one entry in a Profile's work history.
type ExperienceEntry struct {
	Title    string
	Employer string
	Location string
	Start    string // free-form, source data rarely gives a clean date
	End      string // empty means current
}

// IsCurrent reports whether this experience entry has no end date.
func (e ExperienceEntry) IsCurrent() bool {
	return strings.TrimSpace(e.End) == ""
}

// EducationEntry is one entry in a Profile's education history.
type EducationEntry struct {
	School string
	Degree string
	Field  string
}

// Location is a Profile's self-reported location, broken into parts when
// the source data supports it; Raw always carries the full string so
// substring/token matching (§4.D) works even when parts aren't split out.
type Location struct {
	Raw     string
	City    string
	Region  string
	Country string
}

// DerivedScores are computed deterministically from the presence and
// magnitude of a Profile's raw fields — never from a model call.
type DerivedScores struct {
	Completeness int // 0-100: how many fields are populated
	Authority    int // 0-100: seniority signal from title + experience depth
	Engagement   int // 0-100: connections/followers signal
}

// Profile is enriched professional-profile data. Every field beyond the
// profile URL is optional — absence is not an error, and downstream scores
// are computed only from fields that are present.
type Profile struct {
	ProfileURL      string
	FullName        string
	GivenName       string
	FamilyName      string
	Headline        string
	CurrentTitle    string
	CurrentEmployer string
	Location        Location
	Connections     int
	HasConnections  bool
	Followers       int
	HasFollowers    bool
	Biography       string
	Experience      []ExperienceEntry
	Education       []EducationEntry
	Skills          []string
	Scores          DerivedScores
}

// ReconcileCurrentEmployment fills CurrentTitle/CurrentEmployer from the
// most recent experience entry with no end date, when those fields are not
// already set directly — the invariant from spec §3: "if present, current
// employer and current title must be derivable from the most recent
// experience entry with no end date."
func (p *Profile) ReconcileCurrentEmployment() {
	if p.CurrentTitle != "" && p.CurrentEmployer != "" {
		return
	}
	for _, e := range p.Experience {
		if !e.IsCurrent() {
			continue
		}
		if p.CurrentTitle == "" {
			p.CurrentTitle = e.Title
		}
		if p.CurrentEmployer == "" {
			p.CurrentEmployer = e.Employer
		}
		return // experience is ordered most-recent-first
	}
}

// ComputeDerivedScores fills in p.Scores from currently-present fields.
// Each component is a simple, deterministic weighting — no field's
// absence is penalized beyond simply not contributing points.
func (p *Profile) ComputeDerivedScores() {
	p.Scores = DerivedScores{
		Completeness: completenessScore(p),
		Authority:    authorityScore(p),
		Engagement:   engagementScore(p),
	}
}

func completenessScore(p *Profile) int {
	fields := []bool{
		p.FullName != "",
		p.Headline != "",
		p.CurrentTitle != "",
		p.CurrentEmployer != "",
		p.Location.Raw != "",
		p.Biography != "",
		len(p.Experience) > 0,
		len(p.Education) > 0,
		len(p.Skills) > 0,
		p.HasConnections,
	}
	present := 0
	for _, ok := range fields {
		if ok {
			present++
		}
	}
	return (present * 100) / len(fields)
}

func authorityScore(p *Profile) int {
	score := 0
	if p.CurrentTitle != "" {
		score += 30
	}
	depth := len(p.Experience)
	if depth > 5 {
		depth = 5
	}
	score += depth * 10
	if score > 100 {
		score = 100
	}
	return score
}

func engagementScore(p *Profile) int {
	score := 0
	if p.HasConnections {
		switch {
		case p.Connections >= 500:
			score += 60
		case p.Connections >= 100:
			score += 35
		case p.Connections > 0:
			score += 15
		}
	}
	if p.HasFollowers {
		switch {
		case p.Followers >= 1000:
			score += 40
		case p.Followers >= 100:
			score += 20
		case p.Followers > 0:
			score += 5
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}
