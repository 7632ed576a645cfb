package mutation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/client/cache"
	"github.com/trezcool/kumbukumbu/core"
)

// Handle is the typed entry point of a resource. Values returned by List and Get
// are shared with the cache and must not be modified.
type Handle[T any, N any, P Patch[T]] struct {
	co  *Coordinator
	res Resource[T, N, P]
}

// For registers res with the coordinator's registry and returns its Handle.
func For[T any, N any, P Patch[T]](co *Coordinator, res Resource[T, N, P]) *Handle[T, N, P] {
	co.registry.register(res.Parent, res.Kind, loaders{
		list: func(ctx context.Context, scope core.Scope) (interface{}, error) {
			return res.Store.GetMany(ctx, scope)
		},
		detail: func(ctx context.Context, id string, scope core.Scope) (interface{}, error) {
			return res.Store.GetOne(ctx, id, scope)
		},
	})
	return &Handle[T, N, P]{co: co, res: res}
}

func (h *Handle[T, N, P]) Resource() Resource[T, N, P] { return h.res }

// List returns the collection of scope, from the cache unless missing or stale.
func (h *Handle[T, N, P]) List(ctx context.Context, scope core.Scope) ([]T, error) {
	scope, err := h.co.authorize(ctx, scope)
	if err != nil {
		return nil, err
	}
	key := h.res.ListKey(scope)
	if items, ok := cache.Get[[]T](h.co.cache, key); ok && !h.co.cache.IsStale(key) {
		return items, nil
	}
	v, err := h.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]T)
	if !ok {
		return nil, errors.Errorf("mutation: unexpected %T for %s", v, key)
	}
	return items, nil
}

// Get returns one record, from the cache unless missing or stale.
func (h *Handle[T, N, P]) Get(ctx context.Context, id string, scope core.Scope) (T, error) {
	var zero T
	scope, err := h.co.authorize(ctx, scope)
	if err != nil {
		return zero, err
	}
	key := h.res.DetailKey(scope, id)
	if rec, ok := cache.Get[T](h.co.cache, key); ok && !h.co.cache.IsStale(key) {
		return rec, nil
	}
	v, err := h.fetch(ctx, key)
	if err != nil {
		return zero, err
	}
	rec, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("mutation: unexpected %T for %s", v, key)
	}
	return rec, nil
}

// fetch loads key. A load canceled by an intent yields the value the intent left,
// or is tried once more when it left none.
func (h *Handle[T, N, P]) fetch(ctx context.Context, key cache.Key) (interface{}, error) {
	v, err := h.co.cache.Fetch(ctx, key)
	if !errors.Is(err, cache.ErrCanceled) {
		return v, err
	}
	if v, ok := h.co.cache.Read(key); ok {
		return v, nil
	}
	return h.co.cache.Fetch(ctx, key)
}

// Create shows a provisional record in the collection right away, then replaces it with the
// store's record. On failure the collection is restored and the error returned.
func (h *Handle[T, N, P]) Create(ctx context.Context, scope core.Scope, payload N) (T, error) {
	var zero T
	scope, err := h.co.authorize(ctx, scope)
	if err != nil {
		return zero, h.co.reject(h.res.Kind, OpCreate, err)
	}
	if err := h.co.validatePayload(&payload); err != nil {
		return zero, h.co.reject(h.res.Kind, OpCreate, err)
	}

	listKey := h.res.ListKey(scope)
	in := h.co.newIntent(OpCreate, h.res.Kind, scope, payload, listKey)
	in.ProvisionalID = NewProvisionalID()

	result, err := h.co.execute(ctx, plan{
		intent: in,
		apply: func() {
			rec := h.res.Build(in.ProvisionalID, scope, payload, core.NowFunc())
			if items, ok := cache.Get[[]T](h.co.cache, listKey); ok {
				h.co.cache.Write(listKey, h.res.insert(items, rec))
			}
		},
		remote: func(ctx context.Context) (interface{}, error) {
			return h.res.Store.Create(ctx, scope, payload)
		},
		reconcile: func(result interface{}) {
			rec := result.(T)
			in.TargetID = h.res.ID(rec)
			h.reconcile(listKey, in.ProvisionalID, rec)
			h.co.cache.Write(h.res.DetailKey(scope, in.TargetID), rec)
		},
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// reconcile replaces the provisional record of key by rec. Keys no longer holding
// the provisional record are left alone; rec is never listed twice.
func (h *Handle[T, N, P]) reconcile(key cache.Key, provisionalID string, rec T) {
	items, ok := cache.Get[[]T](h.co.cache, key)
	if !ok || h.res.indexOf(items, provisionalID) < 0 {
		return
	}
	h.co.cache.Write(key, h.res.insert(h.res.without(items, provisionalID, h.res.ID(rec)), rec))
}

// replace returns a copy of items with the record id modified by fn, re-positioned.
func (h *Handle[T, N, P]) replace(items []T, id string, fn func(T) T) ([]T, bool) {
	idx := h.res.indexOf(items, id)
	if idx < 0 {
		return items, false
	}
	return h.res.insert(h.res.without(items, id), fn(items[idx])), true
}

// Update merges patch into the cached record right away, then stores it.
func (h *Handle[T, N, P]) Update(ctx context.Context, id string, scope core.Scope, patch P) (T, error) {
	var zero T
	scope, err := h.co.authorize(ctx, scope)
	if err != nil {
		return zero, h.co.reject(h.res.Kind, OpUpdate, err)
	}
	if IsProvisional(id) {
		return zero, h.co.reject(h.res.Kind, OpUpdate, ErrProvisional)
	}
	if err := h.co.validatePayload(&patch); err != nil {
		return zero, h.co.reject(h.res.Kind, OpUpdate, err)
	}

	listKey, detailKey := h.res.ListKey(scope), h.res.DetailKey(scope, id)
	in := h.co.newIntent(OpUpdate, h.res.Kind, scope, patch, listKey, detailKey)
	in.TargetID = id
	merge := func(rec T) T {
		patch.Apply(&rec)
		return rec
	}

	result, err := h.co.execute(ctx, plan{
		intent: in,
		apply: func() {
			if items, ok := cache.Get[[]T](h.co.cache, listKey); ok {
				if items, ok = h.replace(items, id, merge); ok {
					h.co.cache.Write(listKey, items)
				}
			}
			if rec, ok := cache.Get[T](h.co.cache, detailKey); ok {
				h.co.cache.Write(detailKey, merge(rec))
			}
		},
		remote: func(ctx context.Context) (interface{}, error) {
			return h.res.Store.Update(ctx, id, scope, patch)
		},
		reconcile: func(result interface{}) {
			rec := result.(T)
			if items, ok := cache.Get[[]T](h.co.cache, listKey); ok {
				if items, ok = h.replace(items, id, func(T) T { return rec }); ok {
					h.co.cache.Write(listKey, items)
				}
			}
			h.co.cache.Write(detailKey, rec)
		},
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// Delete removes the record from its collection and its detail right away, then from the store.
// Nested collections and dependent kinds are refetched once settled.
func (h *Handle[T, N, P]) Delete(ctx context.Context, id string, scope core.Scope) error {
	scope, err := h.co.authorize(ctx, scope)
	if err != nil {
		return h.co.reject(h.res.Kind, OpDelete, err)
	}
	if IsProvisional(id) {
		return h.co.reject(h.res.Kind, OpDelete, ErrProvisional)
	}

	listKey, detailKey := h.res.ListKey(scope), h.res.DetailKey(scope, id)
	in := h.co.newIntent(OpDelete, h.res.Kind, scope, nil, listKey, detailKey)
	in.TargetID = id

	prefixes := []cache.Key{detailKey}
	for _, kind := range h.res.Dependents {
		prefixes = append(prefixes, cache.NewKey(scope.OrganizationID, kind))
	}

	_, err = h.co.execute(ctx, plan{
		intent: in,
		apply: func() {
			if items, ok := cache.Get[[]T](h.co.cache, listKey); ok {
				h.co.cache.Write(listKey, h.res.without(items, id))
			}
			h.co.cache.Remove(detailKey)
		},
		remote: func(ctx context.Context) (interface{}, error) {
			return nil, h.res.Store.Delete(ctx, id, scope)
		},
		reconcile: func(interface{}) {},
		prefixes:  prefixes,
	})
	return err
}
