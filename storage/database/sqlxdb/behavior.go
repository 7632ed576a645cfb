package sqlxdb

import (
	"context"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/behavior"
)

var (
	categoryTable = table{
		name:    "behavior_categories",
		columns: []string{"id", "organization_id", "name", "description", "created_at", "updated_at"},
		orderBy: "name, id",
	}
	behaviorLogTable = table{
		name:    "behavior_logs",
		columns: []string{"id", "organization_id", "student_id", "category_id", "note", "occurred_at", "created_at", "updated_at"},
		parent:  "student_id",
		orderBy: "occurred_at DESC, created_at DESC",
	}
)

type BehaviorRepository struct {
	db core.DB
}

var (
	_ behavior.CategoryRepository = (*BehaviorRepository)(nil)
	_ behavior.LogRepository      = (*BehaviorRepository)(nil)
)

func NewBehaviorRepository(db core.DB) *BehaviorRepository {
	return &BehaviorRepository{db: db}
}

func (repo *BehaviorRepository) CreateCategory(ctx context.Context, c behavior.Category) (behavior.Category, error) {
	return insert(ctx, repo.db, categoryTable, c, behavior.ErrCategoryExists)
}

func (repo *BehaviorRepository) QueryCategories(ctx context.Context, scope core.Scope) ([]behavior.Category, error) {
	return getMany[behavior.Category](ctx, repo.db, categoryTable, scope)
}

func (repo *BehaviorRepository) GetCategory(ctx context.Context, id string, scope core.Scope) (behavior.Category, error) {
	return getOne[behavior.Category](ctx, repo.db, categoryTable, id, scope, behavior.ErrCategoryNotFound)
}

func (repo *BehaviorRepository) UpdateCategory(ctx context.Context, c behavior.Category) (behavior.Category, error) {
	return update(ctx, repo.db, categoryTable, c, behavior.ErrCategoryNotFound, behavior.ErrCategoryExists)
}

// DeleteCategory is restricted by the logs referencing the category.
func (repo *BehaviorRepository) DeleteCategory(ctx context.Context, id string, scope core.Scope) error {
	return remove(ctx, repo.db, categoryTable, id, scope, behavior.ErrCategoryNotFound, behavior.ErrCategoryInUse)
}

func (repo *BehaviorRepository) CreateLog(ctx context.Context, l behavior.Log) (behavior.Log, error) {
	return insert(ctx, repo.db, behaviorLogTable, l)
}

func (repo *BehaviorRepository) QueryLogs(ctx context.Context, scope core.Scope) ([]behavior.Log, error) {
	return getMany[behavior.Log](ctx, repo.db, behaviorLogTable, scope)
}

func (repo *BehaviorRepository) GetLog(ctx context.Context, id string, scope core.Scope) (behavior.Log, error) {
	return getOne[behavior.Log](ctx, repo.db, behaviorLogTable, id, scope, behavior.ErrLogNotFound)
}

func (repo *BehaviorRepository) UpdateLog(ctx context.Context, l behavior.Log) (behavior.Log, error) {
	return update(ctx, repo.db, behaviorLogTable, l, behavior.ErrLogNotFound)
}

func (repo *BehaviorRepository) DeleteLog(ctx context.Context, id string, scope core.Scope) error {
	return remove(ctx, repo.db, behaviorLogTable, id, scope, behavior.ErrLogNotFound)
}
