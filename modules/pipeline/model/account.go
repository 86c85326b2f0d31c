package model

// AccountRef is the input identity of a target organization. It is
// immutable once a pipeline run starts.
type AccountRef struct {
	ID           string
	Name         string
	ParentName   *string
	City         *string
	State        *string
	IndustryHint *string
}

// AccountRecord is what the CRM adapter returns for an account lookup. It
// is intentionally narrower than a real CRM record — the core only needs
// enough to build an AccountRef.
type AccountRecord struct {
	ID         string
	Name       string
	ParentName *string
	City       *string
	State      *string
}

// ToAccountRef projects an AccountRecord plus an optional parent-name
// override (from CrmReader.GetParentName, which may be more current than
// the denormalized field on the account record itself) into an AccountRef.
func (r *AccountRecord) ToAccountRef(industryHint *string, parentOverride *string) *AccountRef {
	parent := r.ParentName
	if parentOverride != nil {
		parent = parentOverride
	}
	return &AccountRef{
		ID:           r.ID,
		Name:         r.Name,
		ParentName:   parent,
		City:         r.City,
		State:        r.State,
		IndustryHint: industryHint,
	}
}
