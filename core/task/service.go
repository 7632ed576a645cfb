package task

import (
	"context"

	"github.com/trezcool/kumbukumbu/core"
)

var (
	ErrNotFound = core.NewNotFoundError("task not found")

	errUnknownStudent = core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "unknown student"})
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		QueryTasks(ctx context.Context, scope core.Scope) ([]Task, error)
		GetTask(ctx context.Context, id string, scope core.Scope) (Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, id string, scope core.Scope) error
	}

	StudentChecker interface {
		StudentExists(ctx context.Context, id string, scope core.Scope) (bool, error)
	}

	Service struct {
		repo     Repository
		students StudentChecker
	}
)

var _ core.Store[Task, NewTask, UpdateTask] = (*Service)(nil)

func NewService(repo Repository, students StudentChecker) *Service {
	return &Service{repo: repo, students: students}
}

func (svc *Service) checkStudent(ctx context.Context, id string, scope core.Scope) error {
	if id == "" {
		return nil
	}
	ok, err := svc.students.StudentExists(ctx, id, scope)
	if err != nil {
		return err
	}
	if !ok {
		return errUnknownStudent
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, scope core.Scope, nt NewTask) (Task, error) {
	if err := svc.checkStudent(ctx, nt.StudentID.String, scope); err != nil {
		return Task{}, err
	}
	return svc.repo.CreateTask(ctx, Build(core.NewID(), scope, nt, core.NowFunc()))
}

func (svc *Service) GetMany(ctx context.Context, scope core.Scope) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, scope)
}

func (svc *Service) GetOne(ctx context.Context, id string, scope core.Scope) (Task, error) {
	return svc.repo.GetTask(ctx, id, scope)
}

func (svc *Service) Update(ctx context.Context, id string, scope core.Scope, ut UpdateTask) (Task, error) {
	t, err := svc.repo.GetTask(ctx, id, scope)
	if err != nil {
		return Task{}, err
	}
	if ut.StudentID != nil {
		if err := svc.checkStudent(ctx, *ut.StudentID, scope); err != nil {
			return Task{}, err
		}
	}
	ut.Apply(&t)
	t.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateTask(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, id string, scope core.Scope) error {
	return svc.repo.DeleteTask(ctx, id, scope)
}
