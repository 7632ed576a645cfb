package academic

import (
	"context"

	"github.com/trezcool/kumbukumbu/core"
)

var ErrNotFound = core.NewNotFoundError("academic log not found")

type (
	// Repository persists academic logs. scope.ParentID is the student.
	Repository interface {
		CreateLog(ctx context.Context, l Log) (Log, error)
		QueryLogs(ctx context.Context, scope core.Scope) ([]Log, error)
		GetLog(ctx context.Context, id string, scope core.Scope) (Log, error)
		UpdateLog(ctx context.Context, l Log) (Log, error)
		DeleteLog(ctx context.Context, id string, scope core.Scope) error
	}

	StudentChecker interface {
		StudentExists(ctx context.Context, id string, scope core.Scope) (bool, error)
	}

	Service struct {
		repo     Repository
		students StudentChecker
	}
)

var _ core.Store[Log, NewLog, UpdateLog] = (*Service)(nil)

func NewService(repo Repository, students StudentChecker) *Service {
	return &Service{repo: repo, students: students}
}

func (svc *Service) checkStudent(ctx context.Context, scope core.Scope) error {
	ok, err := svc.students.StudentExists(ctx, scope.ParentID, scope)
	if err != nil {
		return err
	}
	if !ok {
		return core.NewNotFoundError("student not found")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, scope core.Scope, nl NewLog) (Log, error) {
	if err := svc.checkStudent(ctx, scope); err != nil {
		return Log{}, err
	}
	return svc.repo.CreateLog(ctx, Build(core.NewID(), scope, nl, core.NowFunc()))
}

func (svc *Service) GetMany(ctx context.Context, scope core.Scope) ([]Log, error) {
	if err := svc.checkStudent(ctx, scope); err != nil {
		return nil, err
	}
	return svc.repo.QueryLogs(ctx, scope)
}

func (svc *Service) GetOne(ctx context.Context, id string, scope core.Scope) (Log, error) {
	return svc.repo.GetLog(ctx, id, scope)
}

func (svc *Service) Update(ctx context.Context, id string, scope core.Scope, ul UpdateLog) (Log, error) {
	l, err := svc.repo.GetLog(ctx, id, scope)
	if err != nil {
		return Log{}, err
	}
	ul.Apply(&l)
	l.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateLog(ctx, l)
}

func (svc *Service) Delete(ctx context.Context, id string, scope core.Scope) error {
	return svc.repo.DeleteLog(ctx, id, scope)
}
