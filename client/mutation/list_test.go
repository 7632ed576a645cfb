package mutation

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kumbukumbu/client/cache"
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/list"
)

type itemsEnv struct {
	env
	items *Handle[list.Item, list.NewItem, list.UpdateItem]
	store *memStore[list.Item, list.NewItem, list.UpdateItem]
	scope core.Scope
}

// newItems serves the items of a student list, rejecting the entries the API rejects.
func newItems(t *testing.T) itemsEnv {
	t.Helper()
	e := newEnv(t, principalOf("u1", orgA))
	res := itemResource()
	store := newMemStore(res)
	res.Store = store
	ie := itemsEnv{env: e, items: For(e.co, res), store: store, scope: core.Scope{OrganizationID: orgA, ParentID: "list-1"}}

	store.intercept = func(ctx context.Context, op Op, payload interface{}) error {
		ni, ok := payload.(list.NewItem)
		if !ok || op != OpCreate {
			return nil
		}
		if ni.Target.Kind() != list.TypeStudent {
			return core.NewValidationError(nil, core.FieldError{Field: "target", Error: "this list only accepts student entries"})
		}
		stored, err := store.GetMany(ctx, ie.scope)
		if err != nil {
			return err
		}
		for _, it := range stored {
			if it.Target == ni.Target {
				return list.ErrDuplicateItem
			}
		}
		return nil
	}
	return ie
}

func (ie itemsEnv) cached(t *testing.T) []list.Item {
	t.Helper()
	items, ok := cache.Get[[]list.Item](ie.cache, ie.items.Resource().ListKey(ie.scope))
	require.True(t, ok, "items must be cached")
	return items
}

func TestHandle_CreateListItem(t *testing.T) {
	ie := newItems(t)
	ctx := context.Background()
	_, err := ie.items.List(ctx, ie.scope)
	require.NoError(t, err)

	var applied []list.Item
	ie.co.On(func(ev Event) {
		if ev.Type == EventApplied {
			applied, _ = cache.Get[[]list.Item](ie.cache, ie.items.Resource().ListKey(ie.scope))
		}
	})

	created, err := ie.items.Create(ctx, ie.scope, list.NewItem{Target: list.StudentTarget("s1"), Note: " call home "})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.True(t, IsProvisional(applied[0].ID))
	assert.Equal(t, list.StudentTarget("s1"), applied[0].Target)
	assert.Equal(t, "list-1", applied[0].ListID)

	items := ie.cached(t)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)
	assert.Equal(t, "call home", items[0].Note)
	assert.Equal(t, []EventType{EventApplied, EventCommitted}, ie.rec.types())
}

func TestHandle_CreateListItemRejected(t *testing.T) {
	tests := []struct {
		name     string
		target   list.Target
		wantKind core.Kind
	}{
		{name: "already listed", target: list.StudentTarget("s1"), wantKind: core.KindConflict},
		{name: "wrong kind", target: list.BehaviorLogTarget("b1"), wantKind: core.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ie := newItems(t)
			ctx := context.Background()
			ie.store.seed(ie.scope, list.BuildItem(core.NewID(), ie.scope, list.NewItem{Target: list.StudentTarget("s1")}, core.NowFunc()))
			before, err := ie.items.List(ctx, ie.scope)
			require.NoError(t, err)
			require.Len(t, before, 1)

			var applied int
			ie.co.On(func(ev Event) {
				if ev.Type == EventApplied {
					items, _ := cache.Get[[]list.Item](ie.cache, ie.items.Resource().ListKey(ie.scope))
					applied = len(items)
				}
			})

			_, err = ie.items.Create(ctx, ie.scope, list.NewItem{Target: tt.target})
			assert.Equal(t, tt.wantKind, core.KindOf(err))
			assert.Equal(t, 2, applied, "applied optimistically")

			assert.Equal(t, before, ie.cached(t), "rolled back")
			assert.Equal(t, []EventType{EventApplied, EventRolledBack}, ie.rec.types())
			stored, err := ie.store.GetMany(ctx, ie.scope)
			require.NoError(t, err)
			assert.Len(t, stored, 1)
		})
	}
}

func TestHandle_CreateListItemWithoutTarget(t *testing.T) {
	ie := newItems(t)
	ctx := context.Background()
	_, err := ie.items.List(ctx, ie.scope)
	require.NoError(t, err)

	_, err = ie.items.Create(ctx, ie.scope, list.NewItem{Note: "who?"})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	var fldErrs validator.ValidationErrors
	require.ErrorAs(t, err, &fldErrs)
	require.Len(t, fldErrs, 1)
	assert.Equal(t, "target", fldErrs[0].Field())

	assert.Empty(t, ie.rec.types(), "never applied")
	assert.Zero(t, ie.store.writes)
	assert.Empty(t, ie.cached(t))
}
