package mutation

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/behavior"
	"github.com/trezcool/kumbukumbu/core/list"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/task"
)

// memStore is an in-memory core.Store. intercept, when set, runs before every write
// and may block or fail it; stored, when set, runs after a create is stored.
// Reads wait for loading, when set, to be closed.
type memStore[T any, N any, P Patch[T]] struct {
	res Resource[T, N, P]

	mu        sync.Mutex
	records   map[string][]T // by org & parent
	intercept func(ctx context.Context, op Op, payload interface{}) error
	stored    func(rec T)
	deleteErr error
	loading   chan struct{}

	reads  int32
	writes int32
}

func newMemStore[T any, N any, P Patch[T]](res Resource[T, N, P]) *memStore[T, N, P] {
	return &memStore[T, N, P]{res: res, records: make(map[string][]T)}
}

func bucket(scope core.Scope) string {
	return scope.OrganizationID + "/" + scope.ParentID
}

func (s *memStore[T, N, P]) sorted(items []T) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return s.res.Less(out[i], out[j]) })
	return out
}

func (s *memStore[T, N, P]) write(ctx context.Context, op Op, payload interface{}) error {
	atomic.AddInt32(&s.writes, 1)
	if s.intercept != nil {
		return s.intercept(ctx, op, payload)
	}
	return nil
}

// seed stores records directly.
func (s *memStore[T, N, P]) seed(scope core.Scope, recs ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[bucket(scope)] = s.sorted(append(s.records[bucket(scope)], recs...))
}

func (s *memStore[T, N, P]) Create(ctx context.Context, scope core.Scope, payload N) (T, error) {
	var zero T
	if err := s.write(ctx, OpCreate, payload); err != nil {
		return zero, err
	}
	rec := s.res.Build(core.NewID(), scope, payload, core.NowFunc())
	s.seed(scope, rec)
	if s.stored != nil {
		s.stored(rec)
	}
	return rec, nil
}

func (s *memStore[T, N, P]) GetMany(_ context.Context, scope core.Scope) ([]T, error) {
	atomic.AddInt32(&s.reads, 1)
	if s.loading != nil {
		<-s.loading
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(s.records[bucket(scope)]), nil
}

func (s *memStore[T, N, P]) GetOne(_ context.Context, id string, scope core.Scope) (T, error) {
	atomic.AddInt32(&s.reads, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	items := s.records[bucket(scope)]
	if i := s.res.indexOf(items, id); i >= 0 {
		return items[i], nil
	}
	return zero, core.ErrNotFound
}

func (s *memStore[T, N, P]) Update(ctx context.Context, id string, scope core.Scope, patch P) (T, error) {
	var zero T
	if err := s.write(ctx, OpUpdate, patch); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.records[bucket(scope)]
	i := s.res.indexOf(items, id)
	if i < 0 {
		return zero, core.ErrNotFound
	}
	rec := items[i]
	patch.Apply(&rec)
	s.records[bucket(scope)] = s.sorted(append(s.res.without(items, id), rec))
	return rec, nil
}

func (s *memStore[T, N, P]) Delete(ctx context.Context, id string, scope core.Scope) error {
	if err := s.write(ctx, OpDelete, nil); err != nil {
		return err
	}
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.records[bucket(scope)]
	if s.res.indexOf(items, id) < 0 {
		return core.ErrNotFound
	}
	s.records[bucket(scope)] = s.res.without(items, id)
	return nil
}

func taskResource() Resource[task.Task, task.NewTask, task.UpdateTask] {
	return Resource[task.Task, task.NewTask, task.UpdateTask]{
		Kind:  task.Kind,
		ID:    func(t task.Task) string { return t.ID },
		Build: task.Build,
		Less:  task.Less,
	}
}

func categoryResource() Resource[behavior.Category, behavior.NewCategory, behavior.UpdateCategory] {
	return Resource[behavior.Category, behavior.NewCategory, behavior.UpdateCategory]{
		Kind:  behavior.CategoryKind,
		ID:    func(c behavior.Category) string { return c.ID },
		Build: behavior.BuildCategory,
		Less:  behavior.LessCategory,
	}
}

func itemResource() Resource[list.Item, list.NewItem, list.UpdateItem] {
	return Resource[list.Item, list.NewItem, list.UpdateItem]{
		Kind:   list.ItemKind,
		Parent: list.Kind,
		ID:     func(it list.Item) string { return it.ID },
		Build:  list.BuildItem,
		Less:   list.LessItem,
	}
}

func principalOf(userID string, orgIDs ...string) PrincipalFunc {
	p := org.Principal{UserID: userID}
	for _, id := range orgIDs {
		p.Memberships = append(p.Memberships, org.Membership{OrganizationID: id, UserID: userID, Role: org.RoleMember, CreatedAt: time.Now()})
	}
	return func(context.Context) (org.Principal, error) { return p, nil }
}
