package mutation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"

	"github.com/trezcool/kumbukumbu/client/cache"
	"github.com/trezcool/kumbukumbu/core"
)

// ProvisionalPrefix starts every client-invented id.
const ProvisionalPrefix = "tmp_"

func NewProvisionalID() string {
	return ProvisionalPrefix + ksuid.New().String()
}

func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// Patch is a partial update of T.
type Patch[T any] interface {
	Apply(*T)
}

// Resource describes an entity kind to the coordinator: where it is stored,
// how records are built and ordered, and where it lives in the cache.
type Resource[T any, N any, P Patch[T]] struct {
	Kind   string // eg. "students"
	Parent string // kind of the parent entity for nested resources, eg. "students" for "behavior-logs"
	Store  core.Store[T, N, P]
	ID     func(T) string
	Build  func(id string, scope core.Scope, payload N, now time.Time) T
	Less   func(a, b T) bool

	// Dependents are the top level kinds a delete may cascade into (eg. tasks of a student).
	Dependents []string
}

// ListKey is [org, kind] or [org, parent, parentID, kind].
func (r Resource[T, N, P]) ListKey(scope core.Scope) cache.Key {
	if r.Parent == "" {
		return cache.NewKey(scope.OrganizationID, r.Kind)
	}
	return cache.NewKey(scope.OrganizationID, r.Parent, scope.ParentID, r.Kind)
}

func (r Resource[T, N, P]) DetailKey(scope core.Scope, id string) cache.Key {
	return r.ListKey(scope).Append(id)
}

func (r Resource[T, N, P]) indexOf(items []T, id string) int {
	for i, it := range items {
		if r.ID(it) == id {
			return i
		}
	}
	return -1
}

// insert returns a copy of items with rec at the position given by Less.
func (r Resource[T, N, P]) insert(items []T, rec T) []T {
	out := make([]T, 0, len(items)+1)
	inserted := false
	for _, it := range items {
		if !inserted && r.Less(rec, it) {
			out = append(out, rec)
			inserted = true
		}
		out = append(out, it)
	}
	if !inserted {
		out = append(out, rec)
	}
	return out
}

// without returns a copy of items without the records whose id is in ids.
func (r Resource[T, N, P]) without(items []T, ids ...string) []T {
	out := make([]T, 0, len(items))
outer:
	for _, it := range items {
		for _, id := range ids {
			if r.ID(it) == id {
				continue outer
			}
		}
		out = append(out, it)
	}
	return out
}

type loaders struct {
	list   func(ctx context.Context, scope core.Scope) (interface{}, error)
	detail func(ctx context.Context, id string, scope core.Scope) (interface{}, error)
}

// Registry loads cache keys from the store of the resource their shape names.
// It is the cache.Loader of a coordinated cache.
type Registry struct {
	principal PrincipalFunc

	mu     sync.RWMutex
	routes map[string]loaders
}

var _ cache.Loader = (*Registry)(nil)

// NewRegistry returns an empty Registry. principal (optional) sets the actor of load scopes.
func NewRegistry(principal PrincipalFunc) *Registry {
	return &Registry{principal: principal, routes: make(map[string]loaders)}
}

func route(parent, kind string) string {
	return parent + ">" + kind
}

func (reg *Registry) register(parent, kind string, l loaders) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.routes[route(parent, kind)] = l
}

// Load implements cache.Loader. Keys are [org, kind(, id)] or [org, parent, parentID, kind(, id)].
func (reg *Registry) Load(ctx context.Context, key cache.Key) (interface{}, error) {
	if len(key) < 2 {
		return nil, errors.Errorf("mutation: malformed key %s", key)
	}
	scope := core.Scope{OrganizationID: key[0]}
	var parent, kind, id string
	switch rest := key[1:]; len(rest) {
	case 1:
		kind = rest[0]
	case 2:
		kind, id = rest[0], rest[1]
	case 3:
		parent, scope.ParentID, kind = rest[0], rest[1], rest[2]
	case 4:
		parent, scope.ParentID, kind, id = rest[0], rest[1], rest[2], rest[3]
	default:
		return nil, errors.Errorf("mutation: malformed key %s", key)
	}

	reg.mu.RLock()
	l, ok := reg.routes[route(parent, kind)]
	reg.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("mutation: no resource registered for %s", key)
	}

	if reg.principal != nil {
		if p, err := reg.principal(ctx); err == nil {
			scope.ActorID = p.UserID
		}
	}
	if id == "" {
		return l.list(ctx, scope)
	}
	return l.detail(ctx, id, scope)
}
