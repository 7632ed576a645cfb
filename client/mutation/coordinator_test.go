package mutation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kumbukumbu/apps/shared"
	"github.com/trezcool/kumbukumbu/client/cache"
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/access"
	"github.com/trezcool/kumbukumbu/core/behavior"
	"github.com/trezcool/kumbukumbu/core/task"
)

const (
	orgA = "org-a"
	orgB = "org-b"
)

var scopeA = core.Scope{OrganizationID: orgA}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type env struct {
	co    *Coordinator
	cache *cache.Cache
	rec   *recorder
	reg   *prometheus.Registry
}

func newEnv(t *testing.T, principal PrincipalFunc) env {
	t.Helper()
	registry := NewRegistry(principal)
	c := cache.New(registry)
	promReg := prometheus.NewRegistry()
	co, err := NewCoordinator(c, registry, access.NewGuard(), principal,
		shared.NewValidator(shared.NewTranslator()), WithRegisterer(promReg))
	require.NoError(t, err)
	rec := &recorder{}
	co.On(rec.listen)
	return env{co: co, cache: c, rec: rec, reg: promReg}
}

func newTasks(t *testing.T, e env) (*Handle[task.Task, task.NewTask, task.UpdateTask], *memStore[task.Task, task.NewTask, task.UpdateTask]) {
	t.Helper()
	res := taskResource()
	store := newMemStore(res)
	res.Store = store
	return For(e.co, res), store
}

func titles(items []task.Task) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func cachedTasks(t *testing.T, e env, h *Handle[task.Task, task.NewTask, task.UpdateTask]) []task.Task {
	t.Helper()
	items, ok := cache.Get[[]task.Task](e.cache, h.Resource().ListKey(scopeA))
	require.True(t, ok, "task list must be cached")
	return items
}

// Scenario A: a created record shows up with a provisional id, then with the store's id.
func TestHandle_Create(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	_, err := tasks.List(context.Background(), scopeA)
	require.NoError(t, err)

	release := make(chan struct{})
	store.intercept = func(ctx context.Context, _ Op, _ interface{}) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	applied := make(chan []task.Task, 1)
	e.co.On(func(ev Event) {
		if ev.Type == EventApplied {
			items, _ := cache.Get[[]task.Task](e.cache, tasks.Resource().ListKey(scopeA))
			applied <- items
		}
	})

	type result struct {
		t   task.Task
		err error
	}
	done := make(chan result, 1)
	go func() {
		created, err := tasks.Create(context.Background(), scopeA, task.NewTask{Title: "  Call parents "})
		done <- result{created, err}
	}()

	optimistic := <-applied
	require.Len(t, optimistic, 1)
	assert.True(t, IsProvisional(optimistic[0].ID))
	assert.Equal(t, "Call parents", optimistic[0].Title, "payload is cleaned before apply")
	assert.Equal(t, task.StatusToDo, optimistic[0].Status)

	// the server answers late
	time.Sleep(50 * time.Millisecond)
	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.False(t, IsProvisional(res.t.ID))
	assert.True(t, core.IsID(res.t.ID))

	items := cachedTasks(t, e, tasks)
	require.Len(t, items, 1)
	assert.Equal(t, res.t.ID, items[0].ID)

	detail, ok := cache.Get[task.Task](e.cache, tasks.Resource().DetailKey(scopeA, res.t.ID))
	assert.True(t, ok)
	assert.Equal(t, res.t.ID, detail.ID)

	assert.Equal(t, []EventType{EventApplied, EventCommitted}, e.rec.types())
	committed := e.rec.last()
	assert.Equal(t, res.t.ID, committed.ID)
	assert.Equal(t, optimistic[0].ID, committed.ProvisionalID)
	assert.Equal(t, 1.0, promtest.ToFloat64(e.co.metrics.intents.WithLabelValues(task.Kind, string(OpCreate), outcomeCommitted)))
}

func TestHandle_CreateOrdering(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store.seed(scopeA,
		task.Build(core.NewID(), scopeA, task.NewTask{Title: "Late", DueDate: null.TimeFrom(due.Add(72 * time.Hour))}, due),
		task.Build(core.NewID(), scopeA, task.NewTask{Title: "Undated"}, due),
	)
	_, err := tasks.List(context.Background(), scopeA)
	require.NoError(t, err)

	var applied []string
	e.co.On(func(ev Event) {
		if ev.Type == EventApplied {
			items, _ := cache.Get[[]task.Task](e.cache, tasks.Resource().ListKey(scopeA))
			applied = titles(items)
		}
	})

	_, err = tasks.Create(context.Background(), scopeA, task.NewTask{Title: "Soon", DueDate: null.TimeFrom(due)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Soon", "Late", "Undated"}, applied)
	assert.Equal(t, []string{"Soon", "Late", "Undated"}, titles(cachedTasks(t, e, tasks)))
}

// Scenario B: a failed update is reverted and the attempted change handed back.
func TestHandle_UpdateRollback(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	orig := task.Build(core.NewID(), scopeA, task.NewTask{Title: "Call parents"}, core.NowFunc())
	store.seed(scopeA, orig)
	_, err := tasks.List(context.Background(), scopeA)
	require.NoError(t, err)
	_, err = tasks.Get(context.Background(), orig.ID, scopeA)
	require.NoError(t, err)

	var appliedStatus task.Status
	e.co.On(func(ev Event) {
		if ev.Type == EventApplied {
			appliedStatus = cachedTasks(t, e, tasks)[0].Status
		}
	})
	store.intercept = func(context.Context, Op, interface{}) error {
		return core.NewTransientError(errors.New("500 Internal Server Error"))
	}

	done := task.StatusDone
	_, err = tasks.Update(context.Background(), orig.ID, scopeA, task.UpdateTask{Status: &done})
	assert.Equal(t, core.KindTransient, core.KindOf(err))
	assert.Equal(t, task.StatusDone, appliedStatus, "applied optimistically")

	assert.Equal(t, task.StatusToDo, cachedTasks(t, e, tasks)[0].Status)
	detail, ok := cache.Get[task.Task](e.cache, tasks.Resource().DetailKey(scopeA, orig.ID))
	require.True(t, ok)
	assert.Equal(t, task.StatusToDo, detail.Status)

	assert.Equal(t, []EventType{EventApplied, EventRolledBack}, e.rec.types())
	rolledBack := e.rec.last()
	assert.Equal(t, core.KindTransient, core.KindOf(rolledBack.Err))
	attempted, ok := rolledBack.Payload.(task.UpdateTask)
	require.True(t, ok, "the attempted patch comes with the event")
	assert.Equal(t, task.StatusDone, *attempted.Status)
	assert.Equal(t, 1.0, promtest.ToFloat64(e.co.metrics.intents.WithLabelValues(task.Kind, string(OpUpdate), outcomeRolledBack)))
}

func TestHandle_UpdateCommit(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	orig := task.Build(core.NewID(), scopeA, task.NewTask{Title: "Call parents"}, core.NowFunc())
	store.seed(scopeA, orig)
	_, err := tasks.List(context.Background(), scopeA)
	require.NoError(t, err)

	progress := task.StatusInProgress
	updated, err := tasks.Update(context.Background(), orig.ID, scopeA, task.UpdateTask{Status: &progress})
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, updated.Status)
	assert.Equal(t, task.StatusInProgress, cachedTasks(t, e, tasks)[0].Status)
	assert.Equal(t, []EventType{EventApplied, EventCommitted}, e.rec.types())
}

// Scenario C: nothing crosses the organization boundary.
func TestHandle_AccessDenied(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	scopeB := core.Scope{OrganizationID: orgB}
	store.seed(scopeB, task.Build(core.NewID(), scopeB, task.NewTask{Title: "Secret"}, core.NowFunc()))

	_, err := tasks.List(context.Background(), scopeB)
	assert.Equal(t, core.ErrAccessDenied, err)
	_, err = tasks.Create(context.Background(), scopeB, task.NewTask{Title: "Sneaky"})
	assert.Equal(t, core.ErrAccessDenied, err)
	assert.Equal(t, core.ErrAccessDenied, tasks.Delete(context.Background(), core.NewID(), scopeB))

	assert.Empty(t, e.cache.Keys(), "nothing is cached")
	assert.Empty(t, e.rec.types(), "no intent was applied")
	assert.Zero(t, store.reads)
	assert.Zero(t, store.writes)
	assert.Equal(t, 1.0, promtest.ToFloat64(e.co.metrics.intents.WithLabelValues(task.Kind, string(OpCreate), outcomeRejected)))
}

func TestHandle_Unauthenticated(t *testing.T) {
	e := newEnv(t, principalOf("u1"))
	tasks, _ := newTasks(t, e)

	_, err := tasks.List(context.Background(), scopeA)
	assert.Equal(t, core.ErrUnauthenticated, err)
	_, err = tasks.Create(context.Background(), scopeA, task.NewTask{Title: "x"})
	assert.Equal(t, core.ErrUnauthenticated, err)
	assert.Empty(t, e.cache.Keys())
}

func TestHandle_ValidationFailsBeforeApply(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	_, err := tasks.List(context.Background(), scopeA)
	require.NoError(t, err)

	_, err = tasks.Create(context.Background(), scopeA, task.NewTask{Title: "   "})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	bogus := task.Status("Someday")
	_, err = tasks.Update(context.Background(), core.NewID(), scopeA, task.UpdateTask{Status: &bogus})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	_, err = tasks.Update(context.Background(), NewProvisionalID(), scopeA, task.UpdateTask{})
	assert.Equal(t, ErrProvisional, err)

	assert.Empty(t, e.rec.types())
	assert.Empty(t, cachedTasks(t, e, tasks))
	assert.Zero(t, store.writes)
}

func TestHandle_Delete(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	keep := task.Build(core.NewID(), scopeA, task.NewTask{Title: "Keep"}, core.NowFunc())
	drop := task.Build(core.NewID(), scopeA, task.NewTask{Title: "Drop"}, core.NowFunc())
	store.seed(scopeA, keep, drop)
	_, err := tasks.List(context.Background(), scopeA)
	require.NoError(t, err)
	_, err = tasks.Get(context.Background(), drop.ID, scopeA)
	require.NoError(t, err)

	require.NoError(t, tasks.Delete(context.Background(), drop.ID, scopeA))
	assert.Equal(t, []string{"Keep"}, titles(cachedTasks(t, e, tasks)))
	_, ok := e.cache.Read(tasks.Resource().DetailKey(scopeA, drop.ID))
	assert.False(t, ok, "detail is absent")
	assert.Equal(t, []EventType{EventApplied, EventCommitted}, e.rec.types())
}

// Scenario D: a restricted delete is reverted, the record stays in the store and the cache.
func TestHandle_DeleteRestricted(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	res := categoryResource()
	store := newMemStore(res)
	res.Store = store
	categories := For(e.co, res)

	cat := behavior.BuildCategory(core.NewID(), scopeA, behavior.NewCategory{Name: "Disruptive"}, core.NowFunc())
	store.seed(scopeA, cat)
	store.deleteErr = behavior.ErrCategoryInUse
	_, err := categories.List(context.Background(), scopeA)
	require.NoError(t, err)
	_, err = categories.Get(context.Background(), cat.ID, scopeA)
	require.NoError(t, err)

	err = categories.Delete(context.Background(), cat.ID, scopeA)
	assert.Equal(t, core.KindConflict, core.KindOf(err))

	items, ok := cache.Get[[]behavior.Category](e.cache, res.ListKey(scopeA))
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, cat.ID, items[0].ID)
	_, ok = e.cache.Read(res.DetailKey(scopeA, cat.ID))
	assert.True(t, ok, "detail restored")

	stored, err := store.GetOne(context.Background(), cat.ID, scopeA)
	require.NoError(t, err)
	assert.Equal(t, cat.ID, stored.ID)
	assert.Equal(t, []EventType{EventApplied, EventRolledBack}, e.rec.types())
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name string
		// stored runs once the store holds rec, before the coordinator hears back.
		stored func(e env, key cache.Key, rec task.Task)
	}{
		{
			name:   "replaces the provisional record",
			stored: func(env, cache.Key, task.Task) {},
		},
		{
			name: "canonical record already listed",
			stored: func(e env, key cache.Key, rec task.Task) {
				items, _ := cache.Get[[]task.Task](e.cache, key)
				e.cache.Write(key, append(append([]task.Task(nil), items...), rec))
			},
		},
		{
			name: "provisional record gone",
			stored: func(e env, key cache.Key, _ task.Task) {
				e.cache.Write(key, []task.Task{})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, principalOf("u1", orgA))
			tasks, store := newTasks(t, e)
			_, err := tasks.List(context.Background(), scopeA)
			require.NoError(t, err)
			key := tasks.Resource().ListKey(scopeA)
			store.stored = func(rec task.Task) { tt.stored(e, key, rec) }

			var reconciled []task.Task
			e.co.On(func(ev Event) {
				if ev.Type == EventCommitted {
					reconciled, _ = cache.Get[[]task.Task](e.cache, key)
				}
			})

			created, err := tasks.Create(context.Background(), scopeA, task.NewTask{Title: "Call parents"})
			require.NoError(t, err)

			for _, items := range [][]task.Task{reconciled, cachedTasks(t, e, tasks)} {
				var seen int
				for _, it := range items {
					assert.False(t, IsProvisional(it.ID), "no provisional record survives")
					if it.ID == created.ID {
						seen++
					}
				}
				assert.LessOrEqual(t, seen, 1, "canonical record listed at most once")
			}
			// settled
			require.Len(t, cachedTasks(t, e, tasks), 1)
			assert.Equal(t, created.ID, cachedTasks(t, e, tasks)[0].ID)
		})
	}
}

// A rollback may restore a snapshot older than a concurrent intent's commit:
// the settle that always follows it brings the server state back.
func TestRollbackFollowedBySettle(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	_, err := tasks.List(context.Background(), scopeA)
	require.NoError(t, err)

	releaseA := make(chan struct{})
	store.intercept = func(_ context.Context, _ Op, payload interface{}) error {
		if nt, ok := payload.(task.NewTask); ok && nt.Title == "A" {
			<-releaseA
			return core.NewTransientError(errors.New("timeout"))
		}
		return nil
	}

	appliedA := make(chan struct{})
	var once sync.Once
	e.co.On(func(ev Event) {
		if ev.Type == EventApplied {
			if nt, ok := ev.Payload.(task.NewTask); ok && nt.Title == "A" {
				once.Do(func() { close(appliedA) })
			}
		}
	})

	errA := make(chan error, 1)
	go func() {
		_, err := tasks.Create(context.Background(), scopeA, task.NewTask{Title: "A"})
		errA <- err
	}()
	<-appliedA

	b, err := tasks.Create(context.Background(), scopeA, task.NewTask{Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, titles(cachedTasks(t, e, tasks)), "B's settle is authoritative")

	close(releaseA)
	assert.Equal(t, core.KindTransient, core.KindOf(<-errA))

	items := cachedTasks(t, e, tasks)
	require.Len(t, items, 1, "the rollback of A must not lose B")
	assert.Equal(t, b.ID, items[0].ID)
}

// A read whose load an intent cancels returns what the intent left instead of failing.
func TestHandle_ListAfterCanceledFetch(t *testing.T) {
	tests := []struct {
		name      string
		intent    func(e env, key cache.Key)
		wantTitle []string
		wantReads int32
	}{
		{
			name: "optimistic value left",
			intent: func(e env, key cache.Key) {
				e.cache.Cancel(key)
				e.cache.Write(key, []task.Task{task.Build(NewProvisionalID(), scopeA, task.NewTask{Title: "Optimistic"}, core.NowFunc())})
			},
			wantTitle: []string{"Optimistic"},
			wantReads: 1,
		},
		{
			name:      "nothing left",
			intent:    func(e env, key cache.Key) { e.cache.Cancel(key) },
			wantTitle: []string{"Stored"},
			wantReads: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, principalOf("u1", orgA))
			tasks, store := newTasks(t, e)
			store.seed(scopeA, task.Build(core.NewID(), scopeA, task.NewTask{Title: "Stored"}, core.NowFunc()))
			store.loading = make(chan struct{})

			type result struct {
				items []task.Task
				err   error
			}
			done := make(chan result, 1)
			go func() {
				items, err := tasks.List(context.Background(), scopeA)
				done <- result{items, err}
			}()
			assert.Eventually(t, func() bool { return atomic.LoadInt32(&store.reads) == 1 }, time.Second, 5*time.Millisecond)

			tt.intent(e, tasks.Resource().ListKey(scopeA))
			close(store.loading)

			res := <-done
			require.NoError(t, res.err)
			assert.Equal(t, tt.wantTitle, titles(res.items))
			assert.Equal(t, tt.wantReads, atomic.LoadInt32(&store.reads))
		})
	}
}

func TestSnapshot_restoreIsIdempotent(t *testing.T) {
	c := cache.New(nil)
	held, absent := cache.NewKey(orgA, "tasks"), cache.NewKey(orgA, "tasks", "t1")
	c.Write(held, []string{"before"})

	s := takeSnapshot(c, []cache.Key{held, absent})
	c.Write(held, []string{"after"})
	c.Write(absent, "created")

	for i := 0; i < 2; i++ {
		s.restore(c)
		v, ok := c.Read(held)
		assert.True(t, ok)
		assert.Equal(t, []string{"before"}, v)
		_, ok = c.Read(absent)
		assert.False(t, ok)
		assert.Equal(t, []cache.Key{held}, c.Keys())
	}
}

func TestKeyLocks(t *testing.T) {
	locks := newKeyLocks()
	k1, k2 := cache.NewKey(orgA, "tasks"), cache.NewKey(orgA, "students")

	keys := normalize([]cache.Key{k1, k2, k1})
	require.Len(t, keys, 2)
	assert.Equal(t, k2, keys[0])

	locks.Lock(normalize([]cache.Key{k1}))

	disjoint := make(chan struct{})
	go func() {
		locks.Lock(normalize([]cache.Key{k2}))
		locks.Unlock(normalize([]cache.Key{k2}))
		close(disjoint)
	}()
	select {
	case <-disjoint:
	case <-time.After(time.Second):
		t.Fatal("disjoint keys must not wait")
	}

	same := make(chan struct{})
	go func() {
		locks.Lock(normalize([]cache.Key{k1}))
		close(same)
		locks.Unlock(normalize([]cache.Key{k1}))
	}()
	select {
	case <-same:
		t.Fatal("same key must wait")
	case <-time.After(30 * time.Millisecond):
	}
	locks.Unlock(normalize([]cache.Key{k1}))
	<-same
}

func TestRegistry_Load(t *testing.T) {
	e := newEnv(t, principalOf("u1", orgA))
	tasks, store := newTasks(t, e)
	rec := task.Build(core.NewID(), scopeA, task.NewTask{Title: "x"}, core.NowFunc())
	store.seed(scopeA, rec)

	v, err := e.co.registry.Load(context.Background(), tasks.Resource().DetailKey(scopeA, rec.ID))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, v.(task.Task).ID)

	_, err = e.co.registry.Load(context.Background(), cache.NewKey(orgA, "unknown"))
	assert.Error(t, err)
	_, err = e.co.registry.Load(context.Background(), cache.NewKey(orgA))
	assert.Error(t, err)
}
