// Package mutation runs optimistic writes against a cache.Cache.
//
// Every intent goes through the same phases: the keys it touches are canceled and snapshotted,
// the change is applied to the cache, the store is called, then the change is either reconciled
// with the store's answer or rolled back to the snapshots. Touched keys are always refetched last,
// so the server has the final word.
package mutation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/kumbukumbu/client/cache"
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/access"
	"github.com/trezcool/kumbukumbu/core/org"
)

// ErrProvisional is returned when updating or deleting a record the store has not confirmed yet.
var ErrProvisional = core.NewConflictError("this record is still being saved")

// PrincipalFunc returns the principal the coordinator acts for.
type PrincipalFunc func(ctx context.Context) (org.Principal, error)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type State int

const (
	StateIdle State = iota
	StatePending
	StateSettling
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSettling:
		return "settling"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolledBack"
	default:
		return "idle"
	}
}

type EventType string

const (
	EventApplied    EventType = "applied"
	EventCommitted  EventType = "committed"
	EventRolledBack EventType = "rolledBack"
)

// Event reports the progress of an intent. A RolledBack event carries the attempted
// Payload so that the UI can reopen its form pre-filled.
type Event struct {
	Type          EventType
	IntentID      snowflake.ID
	Op            Op
	Kind          string
	Scope         core.Scope
	ID            string // target of updates & deletes, canonical id of committed creates
	ProvisionalID string
	Payload       interface{}
	Result        interface{}
	Err           error
}

type Listener func(Event)

// Intent is one requested change and the snapshot of every key it touches.
type Intent struct {
	ID            snowflake.ID
	Op            Op
	Kind          string
	Scope         core.Scope
	TargetID      string
	ProvisionalID string
	Payload       interface{}
	Keys          []cache.Key

	state    State
	snapshot snapshot
}

func (in *Intent) State() State { return in.state }

func (in *Intent) event(typ EventType) Event {
	return Event{
		Type:          typ,
		IntentID:      in.ID,
		Op:            in.Op,
		Kind:          in.Kind,
		Scope:         in.Scope,
		ID:            in.TargetID,
		ProvisionalID: in.ProvisionalID,
		Payload:       in.Payload,
	}
}

type (
	snapshotEntry struct {
		key     cache.Key
		value   interface{}
		present bool
	}

	snapshot []snapshotEntry
)

func takeSnapshot(c *cache.Cache, keys []cache.Key) snapshot {
	s := make(snapshot, 0, len(keys))
	for _, k := range keys {
		v, ok := c.Read(k)
		s = append(s, snapshotEntry{key: k, value: v, present: ok})
	}
	return s
}

// restore puts every key back as it was. Restoring twice leaves the cache unchanged.
func (s snapshot) restore(c *cache.Cache) {
	for _, e := range s {
		if e.present {
			c.Write(e.key, e.value)
		} else {
			c.Remove(e.key)
		}
	}
}

// plan is the kind specific part of an intent.
type plan struct {
	intent    *Intent
	apply     func()
	remote    func(ctx context.Context) (interface{}, error)
	reconcile func(result interface{})
	prefixes  []cache.Key // also refetched when settling
}

type Coordinator struct {
	cache     *cache.Cache
	registry  *Registry
	guard     access.Authorizer
	principal PrincipalFunc
	validate  *validator.Validate
	locks     *keyLocks
	node      *snowflake.Node
	logger    core.Logger
	metrics   *metrics

	mu        sync.RWMutex
	listeners map[int]Listener
	nextL     int
}

type options struct {
	logger     core.Logger
	registerer prometheus.Registerer
	nodeID     int64
}

type Option func(*options)

func WithLogger(logger core.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer registers the coordinator metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithNode sets the snowflake node numbering the intents of this coordinator.
func WithNode(id int64) Option {
	return func(o *options) { o.nodeID = id }
}

// NewCoordinator returns a Coordinator writing to c. c must load its keys through registry.
func NewCoordinator(c *cache.Cache, registry *Registry, guard access.Authorizer, principal PrincipalFunc, validate *validator.Validate, opts ...Option) (*Coordinator, error) {
	o := options{logger: core.NopLogger{}, registerer: prometheus.NewRegistry(), nodeID: 1}
	for _, opt := range opts {
		opt(&o)
	}
	node, err := snowflake.NewNode(o.nodeID)
	if err != nil {
		return nil, errors.Wrap(err, "creating intent id node")
	}
	return &Coordinator{
		cache:     c,
		registry:  registry,
		guard:     guard,
		principal: principal,
		validate:  validate,
		locks:     newKeyLocks(),
		node:      node,
		logger:    o.logger,
		metrics:   newMetrics(o.registerer),
		listeners: make(map[int]Listener),
	}, nil
}

func (co *Coordinator) Cache() *cache.Cache { return co.cache }

// On registers l for every event. The returned func unregisters it.
func (co *Coordinator) On(l Listener) func() {
	co.mu.Lock()
	defer co.mu.Unlock()
	id := co.nextL
	co.nextL++
	co.listeners[id] = l
	return func() {
		co.mu.Lock()
		defer co.mu.Unlock()
		delete(co.listeners, id)
	}
}

func (co *Coordinator) emit(e Event) {
	co.mu.RLock()
	ls := make([]Listener, 0, len(co.listeners))
	for _, l := range co.listeners {
		ls = append(ls, l)
	}
	co.mu.RUnlock()
	for _, l := range ls {
		l(e)
	}
}

// authorize runs the access guard for scope and sets the actor.
func (co *Coordinator) authorize(ctx context.Context, scope core.Scope) (core.Scope, error) {
	p, err := co.principal(ctx)
	if err != nil {
		return scope, err
	}
	if _, err := co.guard.Authorize(p, scope.OrganizationID); err != nil {
		return scope, err
	}
	scope.ActorID = p.UserID
	return scope, nil
}

// validatePayload cleans (when supported) & validates the struct payload points to.
func (co *Coordinator) validatePayload(payload interface{}) error {
	if p, ok := payload.(core.Payload); ok {
		p.Clean()
	}
	if co.validate == nil {
		return nil
	}
	return co.validate.Struct(payload)
}

func (co *Coordinator) newIntent(op Op, kind string, scope core.Scope, payload interface{}, keys ...cache.Key) *Intent {
	return &Intent{
		ID:      co.node.Generate(),
		Op:      op,
		Kind:    kind,
		Scope:   scope,
		Payload: payload,
		Keys:    normalize(keys),
	}
}

func (co *Coordinator) reject(kind string, op Op, err error) error {
	co.metrics.count(kind, op, outcomeRejected)
	return err
}

// execute runs the phases of p.intent. Applying is serialized per key; the remote call is not.
func (co *Coordinator) execute(ctx context.Context, p plan) (interface{}, error) {
	in := p.intent

	co.locks.Lock(in.Keys)
	in.state = StatePending
	co.cache.Cancel(in.Keys...)
	in.snapshot = takeSnapshot(co.cache, in.Keys)
	p.apply()
	co.locks.Unlock(in.Keys)
	co.emit(in.event(EventApplied))

	start := time.Now()
	result, err := p.remote(ctx)
	co.metrics.duration.WithLabelValues(in.Kind, string(in.Op)).Observe(time.Since(start).Seconds())
	in.state = StateSettling

	if err != nil {
		co.locks.Lock(in.Keys)
		in.snapshot.restore(co.cache)
		co.locks.Unlock(in.Keys)
		in.state = StateRolledBack
		co.metrics.count(in.Kind, in.Op, outcomeRolledBack)

		e := in.event(EventRolledBack)
		e.Err = err
		co.emit(e)

		co.settle(ctx, in, p.prefixes)
		return nil, err
	}

	co.locks.Lock(in.Keys)
	p.reconcile(result)
	co.locks.Unlock(in.Keys)
	in.state = StateCommitted
	co.metrics.count(in.Kind, in.Op, outcomeCommitted)

	e := in.event(EventCommitted)
	e.Result = result
	co.emit(e)

	co.settle(ctx, in, p.prefixes)
	return result, nil
}

// settle refetches every touched key (and prefix) and waits for the server's answer.
// Refetch failures are logged: the intent's outcome is already decided.
func (co *Coordinator) settle(ctx context.Context, in *Intent, prefixes []cache.Key) {
	refetches := []*cache.Refetch{co.cache.Invalidate(in.Keys...)}
	for _, prefix := range prefixes {
		refetches = append(refetches, co.cache.InvalidatePrefix(prefix))
	}

	var g errgroup.Group
	for _, r := range refetches {
		g.Go(func() error { return r.Wait(ctx) })
	}
	if err := g.Wait(); err != nil {
		co.logger.Warn(fmt.Sprintf("settling %s %s intent %s: %v", in.Op, in.Kind, in.ID, err), err)
	}
}
