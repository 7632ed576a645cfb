package sqlxdb

import (
	"context"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/student"
)

var studentTable = table{
	name:    "students",
	columns: []string{"id", "organization_id", "name", "email", "notes", "created_at", "updated_at"},
	orderBy: "name, id",
}

type StudentRepository struct {
	db core.DB
}

var _ student.Repository = (*StudentRepository)(nil)

func NewStudentRepository(db core.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (repo *StudentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	return insert(ctx, repo.db, studentTable, s, student.ErrEmailExists)
}

func (repo *StudentRepository) QueryStudents(ctx context.Context, scope core.Scope) ([]student.Student, error) {
	return getMany[student.Student](ctx, repo.db, studentTable, scope)
}

func (repo *StudentRepository) GetStudent(ctx context.Context, id string, scope core.Scope) (student.Student, error) {
	return getOne[student.Student](ctx, repo.db, studentTable, id, scope, student.ErrNotFound)
}

func (repo *StudentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	return update(ctx, repo.db, studentTable, s, student.ErrNotFound, student.ErrEmailExists)
}

func (repo *StudentRepository) DeleteStudent(ctx context.Context, id string, scope core.Scope) error {
	return remove(ctx, repo.db, studentTable, id, scope, student.ErrNotFound)
}

// StudentExists reports whether the student belongs to the organization in scope.
func (repo *StudentRepository) StudentExists(ctx context.Context, id string, scope core.Scope) (bool, error) {
	return exists(ctx, repo.db, "SELECT id FROM students WHERE id = ? AND organization_id = ?", id, scope.OrganizationID)
}
