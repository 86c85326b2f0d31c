package model

import "strconv"

// CRMRecordType is the kind of CRM record a PendingUpdate targets.
type CRMRecordType string

const (
	CRMRecordLead    CRMRecordType = "lead"
	CRMRecordContact CRMRecordType = "contact"
)

// PendingUpdate is a Stage 4 hand-off record: a prospect awaiting human
// approval before a CRM write. Once created it is owned by the external
// approval system — the core never mutates it again.
type PendingUpdate struct {
	TargetType  CRMRecordType
	AccountID   string
	Fields      map[string]string
	OriginRunID string
	Provenance  []string // free-text trail: which stage/adapter produced each contributing fact
	QueuedID    string   // filled in once the sink has accepted it
}

// FieldMapping is the fixed Stage 4 projection from a QualifiedProspect to
// a PendingUpdate's field map, per spec §4.G.
func FieldMapping(q *QualifiedProspect, runID string) map[string]string {
	return map[string]string{
		"given_name":        q.Profile.GivenName,
		"family_name":       q.Profile.FamilyName,
		"title":             q.Profile.CurrentTitle,
		"employer":          q.Profile.CurrentEmployer,
		"location":          q.Profile.Location.Raw,
		"profile_url":       q.ProfileURL(),
		"persona":           string(q.Persona),
		"ranking_score":     strconv.Itoa(q.Score),
		"ranking_rationale": q.Rationale,
		"source_run_id":     runID,
	}
}
