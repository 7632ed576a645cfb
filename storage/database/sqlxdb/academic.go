package sqlxdb

import (
	"context"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/academic"
)

var academicLogTable = table{
	name:    "academic_logs",
	columns: []string{"id", "organization_id", "student_id", "subject", "note", "occurred_at", "created_at", "updated_at"},
	parent:  "student_id",
	orderBy: "occurred_at DESC, created_at DESC",
}

type AcademicRepository struct {
	db core.DB
}

var _ academic.Repository = (*AcademicRepository)(nil)

func NewAcademicRepository(db core.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

func (repo *AcademicRepository) CreateLog(ctx context.Context, l academic.Log) (academic.Log, error) {
	return insert(ctx, repo.db, academicLogTable, l)
}

func (repo *AcademicRepository) QueryLogs(ctx context.Context, scope core.Scope) ([]academic.Log, error) {
	return getMany[academic.Log](ctx, repo.db, academicLogTable, scope)
}

func (repo *AcademicRepository) GetLog(ctx context.Context, id string, scope core.Scope) (academic.Log, error) {
	return getOne[academic.Log](ctx, repo.db, academicLogTable, id, scope, academic.ErrNotFound)
}

func (repo *AcademicRepository) UpdateLog(ctx context.Context, l academic.Log) (academic.Log, error) {
	return update(ctx, repo.db, academicLogTable, l, academic.ErrNotFound)
}

func (repo *AcademicRepository) DeleteLog(ctx context.Context, id string, scope core.Scope) error {
	return remove(ctx, repo.db, academicLogTable, id, scope, academic.ErrNotFound)
}
