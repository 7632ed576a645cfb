package sqlxdb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/list"
)

var (
	listTable = table{
		name:    "lists",
		columns: []string{"id", "organization_id", "owner_id", "name", "type", "created_at", "updated_at"},
		orderBy: "name, id",
	}
	listItemTable = table{
		name: "list_items",
		columns: []string{
			"id", "organization_id", "list_id", "target_kind", "student_id", "behavior_log_id", "academic_log_id",
			"note", "created_at", "updated_at",
		},
		parent:  "list_id",
		orderBy: "created_at, id",
	}

	// tables a list item target may reference
	targetTables = map[list.Type]string{
		list.TypeStudent:     "students",
		list.TypeBehaviorLog: "behavior_logs",
		list.TypeAcademicLog: "academic_logs",
	}
)

// listItemRow is the storage shape of a list.Item: one nullable foreign key per target kind.
type listItemRow struct {
	ID             string      `db:"id"`
	OrganizationID string      `db:"organization_id"`
	ListID         string      `db:"list_id"`
	TargetKind     string      `db:"target_kind"`
	StudentID      null.String `db:"student_id"`
	BehaviorLogID  null.String `db:"behavior_log_id"`
	AcademicLogID  null.String `db:"academic_log_id"`
	Note           string      `db:"note"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func newListItemRow(it list.Item) listItemRow {
	s, b, a := it.Target.Columns()
	return listItemRow{
		ID:             it.ID,
		OrganizationID: it.OrganizationID,
		ListID:         it.ListID,
		TargetKind:     string(it.Target.Kind()),
		StudentID:      null.StringFromPtr(s),
		BehaviorLogID:  null.StringFromPtr(b),
		AcademicLogID:  null.StringFromPtr(a),
		Note:           it.Note,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

func (r listItemRow) item() (list.Item, error) {
	t, err := list.TargetFromColumns(r.StudentID.Ptr(), r.BehaviorLogID.Ptr(), r.AcademicLogID.Ptr())
	if err != nil {
		return list.Item{}, errors.Wrapf(err, "list item %s", r.ID)
	}
	if string(t.Kind()) != r.TargetKind {
		return list.Item{}, errors.Errorf("list item %s: target kind %q does not match %q", r.ID, t.Kind(), r.TargetKind)
	}
	return list.Item{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		ListID:         r.ListID,
		Target:         t,
		Note:           r.Note,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

type ListRepository struct {
	db core.DB
}

var _ list.Repository = (*ListRepository)(nil)

func NewListRepository(db core.DB) *ListRepository {
	return &ListRepository{db: db}
}

func (repo *ListRepository) CreateList(ctx context.Context, l list.List) (list.List, error) {
	return insert(ctx, repo.db, listTable, l)
}

func (repo *ListRepository) QueryLists(ctx context.Context, scope core.Scope) ([]list.List, error) {
	lists := make([]list.List, 0)
	q := repo.db.Rebind(listTable.selectQuery() +
		" WHERE organization_id = ? AND (owner_id = ? OR id IN (SELECT list_id FROM list_shares WHERE user_id = ?))" +
		" ORDER BY " + listTable.orderBy)
	if err := repo.db.SelectContext(ctx, &lists, q, scope.OrganizationID, scope.ActorID, scope.ActorID); err != nil {
		return nil, errors.Wrap(err, "selecting lists")
	}
	return lists, nil
}

func (repo *ListRepository) GetList(ctx context.Context, id string, scope core.Scope) (list.List, error) {
	return getOne[list.List](ctx, repo.db, listTable, id, scope, list.ErrNotFound)
}

func (repo *ListRepository) UpdateList(ctx context.Context, l list.List) (list.List, error) {
	return update(ctx, repo.db, listTable, l, list.ErrNotFound)
}

func (repo *ListRepository) DeleteList(ctx context.Context, id string, scope core.Scope) error {
	return remove(ctx, repo.db, listTable, id, scope, list.ErrNotFound)
}

func (repo *ListRepository) CreateItem(ctx context.Context, it list.Item) (list.Item, error) {
	if _, err := insert(ctx, repo.db, listItemTable, newListItemRow(it), list.ErrDuplicateItem); err != nil {
		return list.Item{}, err
	}
	return it, nil
}

func (repo *ListRepository) QueryItems(ctx context.Context, scope core.Scope) ([]list.Item, error) {
	rows, err := getMany[listItemRow](ctx, repo.db, listItemTable, scope)
	if err != nil {
		return nil, err
	}
	items := make([]list.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.item()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (repo *ListRepository) GetItem(ctx context.Context, id string, scope core.Scope) (list.Item, error) {
	r, err := getOne[listItemRow](ctx, repo.db, listItemTable, id, scope, list.ErrItemNotFound)
	if err != nil {
		return list.Item{}, err
	}
	return r.item()
}

func (repo *ListRepository) UpdateItem(ctx context.Context, it list.Item) (list.Item, error) {
	if _, err := update(ctx, repo.db, listItemTable, newListItemRow(it), list.ErrItemNotFound, list.ErrDuplicateItem); err != nil {
		return list.Item{}, err
	}
	return it, nil
}

func (repo *ListRepository) DeleteItem(ctx context.Context, id string, scope core.Scope) error {
	return remove(ctx, repo.db, listItemTable, id, scope, list.ErrItemNotFound)
}

func (repo *ListRepository) TargetExists(ctx context.Context, t list.Target, scope core.Scope) (bool, error) {
	tbl, ok := targetTables[t.Kind()]
	if !ok {
		return false, nil
	}
	return exists(ctx, repo.db, "SELECT id FROM "+tbl+" WHERE id = ? AND organization_id = ?", t.ID(), scope.OrganizationID)
}

func (repo *ListRepository) CreateShare(ctx context.Context, s list.Share) (list.Share, error) {
	q := "INSERT INTO list_shares (list_id, user_id, created_at) VALUES (:list_id, :user_id, :created_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, s); err != nil {
		return list.Share{}, mapErr(err, "inserting list share", nil, list.ErrAlreadyShared)
	}
	return s, nil
}

func (repo *ListRepository) QueryShares(ctx context.Context, listID string) ([]list.Share, error) {
	shares := make([]list.Share, 0)
	q := repo.db.Rebind("SELECT list_id, user_id, created_at FROM list_shares WHERE list_id = ? ORDER BY created_at")
	if err := repo.db.SelectContext(ctx, &shares, q, listID); err != nil {
		return nil, errors.Wrap(err, "selecting list shares")
	}
	return shares, nil
}

func (repo *ListRepository) IsGrantee(ctx context.Context, listID, userID string) (bool, error) {
	return exists(ctx, repo.db, "SELECT user_id FROM list_shares WHERE list_id = ? AND user_id = ?", listID, userID)
}

func (repo *ListRepository) DeleteShare(ctx context.Context, listID, userID string) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM list_shares WHERE list_id = ? AND user_id = ?"), listID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting list share")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return list.ErrShareNotFound
	}
	return nil
}
