package model

// PersonaTag is the fixed small set of buyer-persona classifications a
// ranked prospect can carry.
type PersonaTag string

const (
	PersonaFacilities     PersonaTag = "facilities-decision-maker"
	PersonaFinance        PersonaTag = "finance-decision-maker"
	PersonaOperations     PersonaTag = "operations-decision-maker"
	PersonaSustainability PersonaTag = "energy/sustainability-lead"
	PersonaOther          PersonaTag = "other"
)

// QualifiedProspect is a Candidate that passed Stage 2 validation, carries
// an attached Profile, and has a ranking outcome from Stage 3. Score is
// set iff the ranker ran successfully for this prospect.
type QualifiedProspect struct {
	Candidate       *Candidate
	Profile         *Profile
	EmploymentMatch EmploymentMatch // carried from Stage 2, consumed by Stage 3's bonus table
	Score           int
	ScoreSet        bool
	Rationale       string
	Persona         PersonaTag
	InputIndex      int // position in the Stage 3 input list, used for tie-breaks
}

// ProfileURL is a convenience accessor used by dedupe/sort helpers.
func (q *QualifiedProspect) ProfileURL() string {
	if q.Candidate != nil {
		return q.Candidate.ProfileURL
	}
	if q.Profile != nil {
		return q.Profile.ProfileURL
	}
	return ""
}
