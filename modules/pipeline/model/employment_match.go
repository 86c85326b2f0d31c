package model

// EmploymentMatch is the confidence tier Stage 2 assigns a survivor's
// current-employer string against an account's CompanyNameSet. Stage 3
// consumes it as a deterministic qualification bonus (§4.E) rather than
// re-running a generative call to re-derive the same judgment.
type EmploymentMatch string

const (
	EmploymentNoMatch EmploymentMatch = "no_match"
	EmploymentExact   EmploymentMatch = "exact"
	EmploymentVariant EmploymentMatch = "variant"
)
