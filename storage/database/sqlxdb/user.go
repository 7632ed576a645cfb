package sqlxdb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/user"
)

var errEmailConflict = core.NewConflictError(user.ErrEmailExists.Error())

const userColumns = "id, name, email, is_active, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	IsActive     bool      `db:"is_active"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func newUserRow(u user.User) userRow {
	return userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		IsActive:     u.IsActive,
		PasswordHash: string(u.PasswordHash),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLogin:    u.LastLogin,
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		IsActive:     r.IsActive,
		PasswordHash: []byte(r.PasswordHash),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin,
	}
}

type UserRepository struct {
	db core.DB
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db core.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (repo *UserRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := "INSERT INTO users (" + userColumns + ") VALUES " +
		"(:id, :name, :email, :is_active, :password_hash, :created_at, :updated_at, :last_login)"
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, newUserRow(usr)); err != nil {
		return user.User{}, mapErr(err, "inserting user", nil, errEmailConflict)
	}
	return usr, nil
}

func (repo *UserRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	q := repo.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + where)
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		return user.User{}, mapErr(err, "selecting user", user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *UserRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id = ?", id)
}

func (repo *UserRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = ?", email)
}

func (repo *UserRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	q, args, err := sqlx.In("SELECT "+userColumns+" FROM users WHERE id IN (?) ORDER BY name", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *UserRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := "UPDATE users SET name = :name, email = :email, is_active = :is_active, password_hash = :password_hash, " +
		"updated_at = :updated_at, last_login = :last_login WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, newUserRow(usr))
	if err != nil {
		return user.User{}, mapErr(err, "updating user", user.ErrNotFound, errEmailConflict)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *UserRepository) EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	q, args := "SELECT id FROM users WHERE email = ?", []interface{}{email}
	if len(excludedIDs) > 0 {
		var err error
		q, args, err = sqlx.In(q+" AND id NOT IN (?)", email, excludedIDs)
		if err != nil {
			return false, errors.Wrap(err, "building query")
		}
	}
	ok, err := exists(ctx, repo.db, q, args...)
	return ok, errors.Wrap(err, "checking email uniqueness")
}
