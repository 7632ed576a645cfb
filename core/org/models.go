package org

import (
	"time"

	"github.com/trezcool/kumbukumbu/core"
)

type Role string

// Roles
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var rolePriorities = map[Role]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleMember: 1,
}

var Roles = []Role{RoleOwner, RoleAdmin, RoleMember}

func (r Role) Choices() []string {
	out := make([]string, 0, len(Roles))
	for _, role := range Roles {
		out = append(out, string(role))
	}
	return out
}

func (r Role) Priority() int { return rolePriorities[r] }

func (r Role) Valid() bool {
	_, ok := rolePriorities[r]
	return ok
}

// AtLeast reports whether r grants at least the rights of min.
func (r Role) AtLeast(min Role) bool { return r.Priority() >= min.Priority() }

// Organization is the tenant boundary: every owned record carries its ID.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Membership struct {
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Role           Role      `json:"role" db:"role"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
}

// Principal is the authenticated caller and its memberships.
// A Principal with no memberships is treated as unauthenticated.
type Principal struct {
	UserID      string
	Memberships []Membership
}

func (p Principal) Membership(orgID string) (Membership, bool) {
	for _, m := range p.Memberships {
		if m.OrganizationID == orgID {
			return m, true
		}
	}
	return Membership{}, false
}

type NewOrganization struct {
	Name string `json:"name" validate:"required,notblank,max=120"`
}

func (no *NewOrganization) Clean() { no.Name = core.CleanString(no.Name) }

type NewMember struct {
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role" validate:"required,enum"`
}

func (nm *NewMember) Clean() {
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Role = Role(core.CleanString(string(nm.Role), true /* lower */))
}
