package behavior

import (
	"context"

	"github.com/trezcool/kumbukumbu/core"
)

var (
	ErrCategoryNotFound = core.NewNotFoundError("behavior category not found")
	ErrCategoryExists   = core.NewConflictError("a behavior category with this name already exists")
	ErrCategoryInUse    = core.NewConflictError("this behavior category is used by behavior logs")
	ErrLogNotFound      = core.NewNotFoundError("behavior log not found")

	errUnknownCategory = core.NewValidationError(nil, core.FieldError{Field: "category_id", Error: "unknown behavior category"})
)

type (
	CategoryRepository interface {
		CreateCategory(ctx context.Context, c Category) (Category, error)
		QueryCategories(ctx context.Context, scope core.Scope) ([]Category, error)
		GetCategory(ctx context.Context, id string, scope core.Scope) (Category, error)
		UpdateCategory(ctx context.Context, c Category) (Category, error)
		// DeleteCategory returns ErrCategoryInUse while logs reference the category.
		DeleteCategory(ctx context.Context, id string, scope core.Scope) error
	}

	// LogRepository persists behavior logs. scope.ParentID is the student.
	LogRepository interface {
		CreateLog(ctx context.Context, l Log) (Log, error)
		QueryLogs(ctx context.Context, scope core.Scope) ([]Log, error)
		GetLog(ctx context.Context, id string, scope core.Scope) (Log, error)
		UpdateLog(ctx context.Context, l Log) (Log, error)
		DeleteLog(ctx context.Context, id string, scope core.Scope) error
	}

	// StudentChecker tells whether a student exists in an organization.
	StudentChecker interface {
		StudentExists(ctx context.Context, id string, scope core.Scope) (bool, error)
	}

	CategoryService struct {
		repo CategoryRepository
	}

	LogService struct {
		repo       LogRepository
		categories CategoryRepository
		students   StudentChecker
	}
)

var (
	_ core.Store[Category, NewCategory, UpdateCategory] = (*CategoryService)(nil)
	_ core.Store[Log, NewLog, UpdateLog]                = (*LogService)(nil)
)

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (svc *CategoryService) Create(ctx context.Context, scope core.Scope, nc NewCategory) (Category, error) {
	return svc.repo.CreateCategory(ctx, BuildCategory(core.NewID(), scope, nc, core.NowFunc()))
}

func (svc *CategoryService) GetMany(ctx context.Context, scope core.Scope) ([]Category, error) {
	return svc.repo.QueryCategories(ctx, scope)
}

func (svc *CategoryService) GetOne(ctx context.Context, id string, scope core.Scope) (Category, error) {
	return svc.repo.GetCategory(ctx, id, scope)
}

func (svc *CategoryService) Update(ctx context.Context, id string, scope core.Scope, uc UpdateCategory) (Category, error) {
	c, err := svc.repo.GetCategory(ctx, id, scope)
	if err != nil {
		return Category{}, err
	}
	uc.Apply(&c)
	c.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateCategory(ctx, c)
}

func (svc *CategoryService) Delete(ctx context.Context, id string, scope core.Scope) error {
	return svc.repo.DeleteCategory(ctx, id, scope)
}

func NewLogService(repo LogRepository, categories CategoryRepository, students StudentChecker) *LogService {
	return &LogService{repo: repo, categories: categories, students: students}
}

func (svc *LogService) checkStudent(ctx context.Context, scope core.Scope) error {
	ok, err := svc.students.StudentExists(ctx, scope.ParentID, scope)
	if err != nil {
		return err
	}
	if !ok {
		return core.NewNotFoundError("student not found")
	}
	return nil
}

func (svc *LogService) checkCategory(ctx context.Context, id string, scope core.Scope) error {
	if _, err := svc.categories.GetCategory(ctx, id, scope); err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return errUnknownCategory
		}
		return err
	}
	return nil
}

func (svc *LogService) Create(ctx context.Context, scope core.Scope, nl NewLog) (Log, error) {
	if err := svc.checkStudent(ctx, scope); err != nil {
		return Log{}, err
	}
	if err := svc.checkCategory(ctx, nl.CategoryID, scope); err != nil {
		return Log{}, err
	}
	return svc.repo.CreateLog(ctx, BuildLog(core.NewID(), scope, nl, core.NowFunc()))
}

func (svc *LogService) GetMany(ctx context.Context, scope core.Scope) ([]Log, error) {
	if err := svc.checkStudent(ctx, scope); err != nil {
		return nil, err
	}
	return svc.repo.QueryLogs(ctx, scope)
}

func (svc *LogService) GetOne(ctx context.Context, id string, scope core.Scope) (Log, error) {
	return svc.repo.GetLog(ctx, id, scope)
}

func (svc *LogService) Update(ctx context.Context, id string, scope core.Scope, ul UpdateLog) (Log, error) {
	l, err := svc.repo.GetLog(ctx, id, scope)
	if err != nil {
		return Log{}, err
	}
	if ul.CategoryID != nil && *ul.CategoryID != l.CategoryID {
		if err := svc.checkCategory(ctx, *ul.CategoryID, scope); err != nil {
			return Log{}, err
		}
	}
	ul.Apply(&l)
	l.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateLog(ctx, l)
}

func (svc *LogService) Delete(ctx context.Context, id string, scope core.Scope) error {
	return svc.repo.DeleteLog(ctx, id, scope)
}
