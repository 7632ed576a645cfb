package org

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
)

var (
	ErrNotFound        = core.NewNotFoundError("organization not found")
	ErrAlreadyMember   = core.NewConflictError("user is already a member of this organization")
	errCannotGrantRole = core.NewValidationError(nil, core.FieldError{Field: "role", Error: "not enough rights to grant this role"})
)

type (
	Repository interface {
		// CreateOrganization stores org and the owner membership of its creator atomically.
		CreateOrganization(ctx context.Context, org Organization, owner Membership) (Organization, error)
		GetOrganization(ctx context.Context, id string) (Organization, error)
		QueryOrganizationsForUser(ctx context.Context, userID string) ([]Organization, error)
		QueryMemberships(ctx context.Context, userID string) ([]Membership, error)
		QueryMembers(ctx context.Context, orgID string) ([]Membership, error)
		// CreateMembership returns a core.ErrConflict error when the user is already a member.
		CreateMembership(ctx context.Context, m Membership) (Membership, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create creates an organization. Its creator becomes the owner.
func (svc *Service) Create(ctx context.Context, creatorID string, no NewOrganization) (Organization, error) {
	now := core.NowFunc()
	org := Organization{
		ID:        core.NewID(),
		Name:      no.Name,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := Membership{OrganizationID: org.ID, UserID: creatorID, Role: RoleOwner, CreatedAt: now}
	return svc.repo.CreateOrganization(ctx, org, owner)
}

func (svc *Service) Get(ctx context.Context, id string) (Organization, error) {
	return svc.repo.GetOrganization(ctx, id)
}

func (svc *Service) QueryForUser(ctx context.Context, userID string) ([]Organization, error) {
	return svc.repo.QueryOrganizationsForUser(ctx, userID)
}

// Principal loads the memberships of userID.
func (svc *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	ms, err := svc.repo.QueryMemberships(ctx, userID)
	if err != nil {
		return Principal{}, errors.Wrap(err, "querying memberships")
	}
	return Principal{UserID: userID, Memberships: ms}, nil
}

func (svc *Service) Members(ctx context.Context, orgID string) ([]Membership, error) {
	return svc.repo.QueryMembers(ctx, orgID)
}

// AddMember adds userID to the actor's organization. Only owners and admins may add members,
// and nobody may grant a role above their own.
func (svc *Service) AddMember(ctx context.Context, actor Membership, userID string, role Role) (Membership, error) {
	if !actor.Role.AtLeast(RoleAdmin) {
		return Membership{}, core.ErrAccessDenied
	}
	if !role.Valid() || role.Priority() > actor.Role.Priority() {
		return Membership{}, errCannotGrantRole
	}
	m := Membership{
		OrganizationID: actor.OrganizationID,
		UserID:         userID,
		Role:           role,
		CreatedAt:      core.NowFunc(),
	}
	m, err := svc.repo.CreateMembership(ctx, m)
	if core.KindOf(err) == core.KindConflict {
		return Membership{}, ErrAlreadyMember
	}
	return m, err
}
