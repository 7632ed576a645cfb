package core

// Scope bounds every store operation to one organization and, for nested resources, one parent.
type Scope struct {
	OrganizationID string
	ParentID       string
	// ActorID is the user performing the operation. Used for ownership checks (eg. lists).
	ActorID string
}

func (s Scope) WithParent(id string) Scope {
	s.ParentID = id
	return s
}
