package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/user"
	"github.com/trezcool/kumbukumbu/storage/database"
	"github.com/trezcool/kumbukumbu/storage/database/sqlxdb"
)

// PrepareDB opens a fresh, migrated SQLite database that lives as long as the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Database.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Setup(context.Background(), conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        core.NewID(),
		Name:      name,
		Email:     email,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateOrganization creates an organization owned by owner.
func CreateOrganization(t *testing.T, db core.DB, name string, owner user.User) org.Organization {
	t.Helper()
	svc := org.NewService(sqlxdb.NewOrganizationRepository(db))
	o, err := svc.Create(context.Background(), owner.ID, org.NewOrganization{Name: name})
	if err != nil {
		t.Fatalf("CreateOrganization() failed: %v", err)
	}
	return o
}

func AddMember(t *testing.T, db core.DB, o org.Organization, usr user.User, role org.Role) {
	t.Helper()
	repo := sqlxdb.NewOrganizationRepository(db)
	m := org.Membership{OrganizationID: o.ID, UserID: usr.ID, Role: role, CreatedAt: time.Now().UTC()}
	if _, err := repo.CreateMembership(context.Background(), m); err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}
}

// Scope returns the scope of usr acting in o.
func Scope(o org.Organization, usr user.User, parentID ...string) core.Scope {
	s := core.Scope{OrganizationID: o.ID, ActorID: usr.ID}
	if len(parentID) > 0 {
		s.ParentID = parentID[0]
	}
	return s
}
