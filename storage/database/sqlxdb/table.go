package sqlxdb

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
)

// table describes an organization-scoped table whose rows map onto a struct through `db` tags.
// Every statement built here is bounded by organization_id (and the parent column, if any).
type table struct {
	name    string
	columns []string // first column is the primary key "id"
	parent  string   // parent column filtered on scope.ParentID, if any
	orderBy string
}

func (t table) selectQuery() string {
	return "SELECT " + strings.Join(t.columns, ", ") + " FROM " + t.name
}

func (t table) scopeWhere(scope core.Scope) (string, []interface{}) {
	where := " WHERE organization_id = ?"
	args := []interface{}{scope.OrganizationID}
	if t.parent != "" {
		where += " AND " + t.parent + " = ?"
		args = append(args, scope.ParentID)
	}
	return where, args
}

func (t table) insertQuery() string {
	named := make([]string, len(t.columns))
	for i, c := range t.columns {
		named[i] = ":" + c
	}
	return "INSERT INTO " + t.name + " (" + strings.Join(t.columns, ", ") + ") VALUES (" + strings.Join(named, ", ") + ")"
}

func (t table) updateQuery() string {
	sets := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		switch c {
		case "id", "organization_id", "created_at", t.parent:
			continue
		}
		sets = append(sets, c+" = :"+c)
	}
	return "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE id = :id AND organization_id = :organization_id"
}

func getMany[T any](ctx context.Context, db core.DBExecutor, t table, scope core.Scope) ([]T, error) {
	where, args := t.scopeWhere(scope)
	q := db.Rebind(t.selectQuery() + where + " ORDER BY " + t.orderBy)
	rows := make([]T, 0)
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "selecting %s", t.name)
	}
	return rows, nil
}

func getOne[T any](ctx context.Context, db core.DBExecutor, t table, id string, scope core.Scope, notFound error) (T, error) {
	var row T
	where, args := t.scopeWhere(scope)
	q := db.Rebind(t.selectQuery() + where + " AND id = ?")
	err := db.GetContext(ctx, &row, q, append(args, id)...)
	return row, mapErr(err, "selecting "+t.name, notFound)
}

func insert[T any](ctx context.Context, db core.DBExecutor, t table, row T, conflict ...error) (T, error) {
	_, err := sqlx.NamedExecContext(ctx, db, t.insertQuery(), row)
	if err != nil {
		var zero T
		return zero, mapErr(err, "inserting into "+t.name, nil, conflict...)
	}
	return row, nil
}

func update[T any](ctx context.Context, db core.DBExecutor, t table, row T, notFound error, conflict ...error) (T, error) {
	res, err := sqlx.NamedExecContext(ctx, db, t.updateQuery(), row)
	var zero T
	if err != nil {
		return zero, mapErr(err, "updating "+t.name, notFound, conflict...)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return zero, notFound
	}
	return row, nil
}

func remove(ctx context.Context, db core.DBExecutor, t table, id string, scope core.Scope, notFound error, conflict ...error) error {
	where, args := t.scopeWhere(scope)
	q := db.Rebind("DELETE FROM " + t.name + where + " AND id = ?")
	res, err := db.ExecContext(ctx, q, append(args, id)...)
	if err != nil {
		return mapErr(err, "deleting from "+t.name, notFound, conflict...)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

func exists(ctx context.Context, db core.DBExecutor, q string, args ...interface{}) (bool, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind("SELECT COUNT(*) FROM ("+q+") AS sub"), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}
