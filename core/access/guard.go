// Package access is the single choke point deciding whether a principal may touch an organization.
package access

import (
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/org"
)

// Authorizer decides whether a principal may act within an organization.
type Authorizer interface {
	Authorize(p org.Principal, orgID string) (org.Membership, error)
}

type Guard struct{}

var _ Authorizer = (*Guard)(nil)

func NewGuard() *Guard { return &Guard{} }

// Authorize returns the principal's membership in orgID.
// It fails with core.ErrUnauthenticated when the principal has no memberships at all
// and with core.ErrAccessDenied when none of them is for orgID.
func (g *Guard) Authorize(p org.Principal, orgID string) (org.Membership, error) {
	if p.UserID == "" || len(p.Memberships) == 0 {
		return org.Membership{}, core.ErrUnauthenticated
	}
	m, ok := p.Membership(orgID)
	if !ok || orgID == "" {
		return org.Membership{}, core.ErrAccessDenied
	}
	return m, nil
}

// Require is Authorize plus a minimum role.
func (g *Guard) Require(p org.Principal, orgID string, min org.Role) (org.Membership, error) {
	m, err := g.Authorize(p, orgID)
	if err != nil {
		return m, err
	}
	if !m.Role.AtLeast(min) {
		return org.Membership{}, core.ErrAccessDenied
	}
	return m, nil
}
