package student

import (
	"context"

	"github.com/trezcool/kumbukumbu/core"
)

var (
	ErrNotFound    = core.NewNotFoundError("student not found")
	ErrEmailExists = core.NewConflictError("a student with this email already exists in this organization")
)

type (
	// Repository persists students. Every method is bounded by the organization in scope.
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		QueryStudents(ctx context.Context, scope core.Scope) ([]Student, error)
		GetStudent(ctx context.Context, id string, scope core.Scope) (Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, id string, scope core.Scope) error
	}

	Service struct {
		repo Repository
	}
)

var _ core.Store[Student, NewStudent, UpdateStudent] = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, scope core.Scope, ns NewStudent) (Student, error) {
	return svc.repo.CreateStudent(ctx, Build(core.NewID(), scope, ns, core.NowFunc()))
}

func (svc *Service) GetMany(ctx context.Context, scope core.Scope) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, scope)
}

func (svc *Service) GetOne(ctx context.Context, id string, scope core.Scope) (Student, error) {
	return svc.repo.GetStudent(ctx, id, scope)
}

func (svc *Service) Update(ctx context.Context, id string, scope core.Scope, us UpdateStudent) (Student, error) {
	s, err := svc.repo.GetStudent(ctx, id, scope)
	if err != nil {
		return Student{}, err
	}
	us.Apply(&s)
	s.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateStudent(ctx, s)
}

// Delete removes a student along with its logs, tasks and list items.
func (svc *Service) Delete(ctx context.Context, id string, scope core.Scope) error {
	return svc.repo.DeleteStudent(ctx, id, scope)
}
