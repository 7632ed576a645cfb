package student

import (
	"time"

	"github.com/trezcool/kumbukumbu/core"
)

// Kind is the resource segment of students.
const Kind = "students"

type Student struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	Notes          string    `json:"notes" db:"notes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name  string `json:"name" validate:"required,notblank,max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Notes string `json:"notes" validate:"max=2000"`
}

func (ns *NewStudent) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Notes = core.CleanString(ns.Notes)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// nil fields are left untouched.
type UpdateStudent struct {
	Name  *string `json:"name" validate:"omitempty,notblank,max=120"`
	Email *string `json:"email" validate:"omitempty,email"`
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
}

func (us *UpdateStudent) Clean() {
	if us.Name != nil {
		*us.Name = core.CleanString(*us.Name)
	}
	if us.Email != nil {
		*us.Email = core.CleanString(*us.Email, true /* lower */)
	}
	if us.Notes != nil {
		*us.Notes = core.CleanString(*us.Notes)
	}
}

func (us UpdateStudent) Apply(s *Student) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Email != nil {
		s.Email = *us.Email
	}
	if us.Notes != nil {
		s.Notes = *us.Notes
	}
}

// Build returns the Student a NewStudent describes.
func Build(id string, scope core.Scope, ns NewStudent, now time.Time) Student {
	return Student{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		Name:           ns.Name,
		Email:          ns.Email,
		Notes:          ns.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Less orders students by name.
func Less(a, b Student) bool {
	if a.Name == b.Name {
		return a.ID < b.ID
	}
	return a.Name < b.Name
}
