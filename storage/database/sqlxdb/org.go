package sqlxdb

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/list"
	"github.com/trezcool/kumbukumbu/core/org"
)

const (
	orgColumns        = "id, name, created_by, created_at, updated_at"
	membershipColumns = "organization_id, user_id, role, created_at"
)

type OrganizationRepository struct {
	db core.DB
}

var (
	_ org.Repository = (*OrganizationRepository)(nil)
	_ list.Members   = (*OrganizationRepository)(nil)
)

func NewOrganizationRepository(db core.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (repo *OrganizationRepository) CreateOrganization(ctx context.Context, o org.Organization, owner org.Membership) (org.Organization, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return org.Organization{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := "INSERT INTO organizations (" + orgColumns + ") VALUES (:id, :name, :created_by, :created_at, :updated_at)"
	if _, err = sqlx.NamedExecContext(ctx, tx, q, o); err != nil {
		return org.Organization{}, mapErr(err, "inserting organization", nil)
	}
	q = "INSERT INTO memberships (" + membershipColumns + ") VALUES (:organization_id, :user_id, :role, :created_at)"
	if _, err = sqlx.NamedExecContext(ctx, tx, q, owner); err != nil {
		return org.Organization{}, mapErr(err, "inserting owner membership", nil)
	}
	if err = tx.Commit(); err != nil {
		return org.Organization{}, errors.Wrap(err, "committing transaction")
	}
	return o, nil
}

func (repo *OrganizationRepository) GetOrganization(ctx context.Context, id string) (org.Organization, error) {
	var o org.Organization
	q := repo.db.Rebind("SELECT " + orgColumns + " FROM organizations WHERE id = ?")
	err := repo.db.GetContext(ctx, &o, q, id)
	return o, mapErr(err, "selecting organization", org.ErrNotFound)
}

func (repo *OrganizationRepository) QueryOrganizationsForUser(ctx context.Context, userID string) ([]org.Organization, error) {
	orgs := make([]org.Organization, 0)
	q := repo.db.Rebind("SELECT o.id, o.name, o.created_by, o.created_at, o.updated_at FROM organizations o " +
		"JOIN memberships m ON m.organization_id = o.id WHERE m.user_id = ? ORDER BY o.name")
	if err := repo.db.SelectContext(ctx, &orgs, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting organizations")
	}
	return orgs, nil
}

func (repo *OrganizationRepository) queryMemberships(ctx context.Context, col, val string) ([]org.Membership, error) {
	ms := make([]org.Membership, 0)
	q := repo.db.Rebind("SELECT " + membershipColumns + " FROM memberships WHERE " + col + " = ? ORDER BY created_at")
	if err := repo.db.SelectContext(ctx, &ms, q, val); err != nil {
		return nil, errors.Wrap(err, "selecting memberships")
	}
	return ms, nil
}

func (repo *OrganizationRepository) QueryMemberships(ctx context.Context, userID string) ([]org.Membership, error) {
	return repo.queryMemberships(ctx, "user_id", userID)
}

func (repo *OrganizationRepository) QueryMembers(ctx context.Context, orgID string) ([]org.Membership, error) {
	return repo.queryMemberships(ctx, "organization_id", orgID)
}

func (repo *OrganizationRepository) CreateMembership(ctx context.Context, m org.Membership) (org.Membership, error) {
	q := "INSERT INTO memberships (" + membershipColumns + ") VALUES (:organization_id, :user_id, :role, :created_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, m); err != nil {
		return org.Membership{}, mapErr(err, "inserting membership", nil)
	}
	return m, nil
}

func (repo *OrganizationRepository) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	return exists(ctx, repo.db, "SELECT user_id FROM memberships WHERE organization_id = ? AND user_id = ?", orgID, userID)
}
