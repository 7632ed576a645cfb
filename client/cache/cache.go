// Package cache is the client side mirror of server collections.
//
// Reads and writes are synchronous and never touch the network. Fetches go through a Loader;
// concurrent fetches of a key share one call, and a fetch started before Cancel(key) has its
// response discarded.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/kumbukumbu/core"
)

var (
	// ErrCanceled is returned by Fetch when the key was canceled while the load was in flight.
	ErrCanceled = errors.New("cache: fetch canceled")

	errNoLoader = errors.New("cache: no loader configured")
)

// Loader loads the server value of a key.
type Loader interface {
	Load(ctx context.Context, key Key) (interface{}, error)
}

type LoaderFunc func(ctx context.Context, key Key) (interface{}, error)

func (f LoaderFunc) Load(ctx context.Context, key Key) (interface{}, error) { return f(ctx, key) }

// Listener is notified of every change of a key. present is false once the key is removed.
type Listener func(value interface{}, present bool)

type (
	entry struct {
		key     Key
		value   interface{}
		present bool
		stale   bool
		gen     uint64 // bumped by Cancel
	}

	subscription struct {
		id uint64
		fn Listener
	}
)

type Cache struct {
	loader Loader
	logger core.Logger
	ctx    context.Context // refetches run in this context

	mu      sync.Mutex
	entries map[string]*entry
	subs    map[string][]subscription
	nextSub uint64

	group singleflight.Group
}

type Option func(*Cache)

func WithLogger(logger core.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithContext sets the context background refetches run in.
func WithContext(ctx context.Context) Option {
	return func(c *Cache) { c.ctx = ctx }
}

func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		loader:  loader,
		logger:  core.NopLogger{},
		ctx:     context.Background(),
		entries: make(map[string]*entry),
		subs:    make(map[string][]subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// entry returns the entry of key, creating it if needed. c.mu must be held.
func (c *Cache) entry(key Key) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: key}
		c.entries[k] = e
	}
	return e
}

// listeners returns a copy of the listeners of key. c.mu must be held.
func (c *Cache) listeners(key Key) []Listener {
	subs := c.subs[key.String()]
	fns := make([]Listener, len(subs))
	for i, s := range subs {
		fns[i] = s.fn
	}
	return fns
}

func notify(fns []Listener, value interface{}, present bool) {
	for _, fn := range fns {
		fn(value, present)
	}
}

// Read returns the current value of key.
func (c *Cache) Read(key Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.present {
		return nil, false
	}
	return e.value, true
}

// Get is Read with the value asserted to T.
func Get[T any](c *Cache, key Key) (T, bool) {
	var zero T
	v, ok := c.Read(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Write replaces the value of key and notifies its subscribers before returning.
func (c *Cache) Write(key Key, value interface{}) {
	c.mu.Lock()
	e := c.entry(key)
	e.value, e.present, e.stale = value, true, false
	fns := c.listeners(key)
	c.mu.Unlock()

	notify(fns, value, true)
}

// Remove marks key absent and notifies its subscribers.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	e := c.entry(key)
	e.value, e.present, e.stale = nil, false, false
	fns := c.listeners(key)
	c.mu.Unlock()

	notify(fns, nil, false)
}

// Subscribe registers l for changes of key. The returned func unsubscribes.
func (c *Cache) Subscribe(key Key, l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(key)
	c.nextSub++
	id := c.nextSub
	k := key.String()
	c.subs[k] = append(c.subs[k], subscription{id: id, fn: l})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.subs[k]
		for i, s := range subs {
			if s.id == id {
				c.subs[k] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(c.subs[k]) == 0 {
			delete(c.subs, k)
		}
	}
}

// Cancel makes the responses of the fetches in flight for keys be discarded.
func (c *Cache) Cancel(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.entry(key).gen++
	}
}

// IsStale reports whether key was invalidated and not refreshed yet.
func (c *Cache) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	return ok && e.stale
}

// Keys returns the keys holding a value, sorted.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for _, e := range c.entries {
		if e.present {
			keys = append(keys, e.key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Fetch loads key and stores the result. Concurrent fetches of the same key share one load.
// A key the server reports as not found is removed.
func (c *Cache) Fetch(ctx context.Context, key Key) (interface{}, error) {
	if c.loader == nil {
		return nil, errNoLoader
	}
	c.mu.Lock()
	gen := c.entry(key).gen
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
		return c.load(ctx, key, gen)
	})
	return v, err
}

func (c *Cache) load(ctx context.Context, key Key, gen uint64) (interface{}, error) {
	v, err := c.loader.Load(ctx, key)

	c.mu.Lock()
	e := c.entry(key)
	if e.gen != gen {
		c.mu.Unlock()
		return nil, ErrCanceled
	}
	switch {
	case err == nil:
		e.value, e.present, e.stale = v, true, false
	case core.KindOf(err) == core.KindNotFound:
		e.value, e.present, e.stale = nil, false, false
	default:
		c.mu.Unlock()
		return nil, err
	}
	fns := c.listeners(key)
	c.mu.Unlock()

	notify(fns, v, err == nil)
	return v, err
}

// Refetch is the handle of refetches scheduled by an invalidation.
type Refetch struct {
	done chan struct{}
	err  error
}

func (r *Refetch) Done() <-chan struct{} { return r.done }

// Wait blocks until the refetches complete or ctx is done.
// Canceled fetches and keys the server no longer has are not errors.
func (r *Refetch) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate marks keys stale and refetches them in the background.
func (c *Cache) Invalidate(keys ...Key) *Refetch {
	c.mu.Lock()
	for _, key := range keys {
		c.entry(key).stale = true
	}
	c.mu.Unlock()

	r := &Refetch{done: make(chan struct{})}
	if c.loader == nil {
		close(r.done)
		return r
	}

	var g errgroup.Group
	for _, key := range keys {
		g.Go(func() error {
			_, err := c.Fetch(c.ctx, key)
			if err == nil || errors.Is(err, ErrCanceled) || core.KindOf(err) == core.KindNotFound {
				return nil
			}
			c.logger.Warn(fmt.Sprintf("refetching %s: %v", key, err), err)
			return errors.Wrapf(err, "refetching %s", key)
		})
	}
	go func() {
		r.err = g.Wait()
		close(r.done)
	}()
	return r
}

// InvalidatePrefix invalidates every known key starting with prefix.
func (c *Cache) InvalidatePrefix(prefix Key) *Refetch {
	c.mu.Lock()
	keys := make([]Key, 0)
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) && (e.present || e.stale || len(c.subs[e.key.String()]) > 0) {
			keys = append(keys, e.key)
		}
	}
	c.mu.Unlock()
	return c.Invalidate(keys...)
}
