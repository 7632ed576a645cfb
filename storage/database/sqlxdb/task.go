package sqlxdb

import (
	"context"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/task"
)

var taskTable = table{
	name:    "tasks",
	columns: []string{"id", "organization_id", "student_id", "title", "status", "due_date", "created_at", "updated_at"},
	orderBy: "due_date IS NULL, due_date, created_at, id",
}

type TaskRepository struct {
	db core.DB
}

var _ task.Repository = (*TaskRepository)(nil)

func NewTaskRepository(db core.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (repo *TaskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	return insert(ctx, repo.db, taskTable, t)
}

func (repo *TaskRepository) QueryTasks(ctx context.Context, scope core.Scope) ([]task.Task, error) {
	return getMany[task.Task](ctx, repo.db, taskTable, scope)
}

func (repo *TaskRepository) GetTask(ctx context.Context, id string, scope core.Scope) (task.Task, error) {
	return getOne[task.Task](ctx, repo.db, taskTable, id, scope, task.ErrNotFound)
}

func (repo *TaskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	return update(ctx, repo.db, taskTable, t, task.ErrNotFound)
}

func (repo *TaskRepository) DeleteTask(ctx context.Context, id string, scope core.Scope) error {
	return remove(ctx, repo.db, taskTable, id, scope, task.ErrNotFound)
}
