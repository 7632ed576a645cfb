// Package changefeed broadcasts the writes committed by the API so that other clients
// can invalidate their cached copies.
package changefeed

import (
	"context"
	"sync"
	"time"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change describes one committed write. Key is the cache key of the collection
// the entity belongs to, eg. [org, "students", id, "behavior-logs"].
type Change struct {
	OrganizationID string    `json:"organization_id"`
	Key            []string  `json:"key"`
	ID             string    `json:"id"`
	Op             Op        `json:"op"`
	ActorID        string    `json:"actor_id"`
	At             time.Time `json:"at"`
}

type Handler func(Change)

type Bus interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe calls h for every change published until ctx is done.
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// MemoryBus delivers changes in process, synchronously.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
	closed bool
}

var _ Bus = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]Handler)}
}

func (b *MemoryBus) Publish(_ context.Context, c Change) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(c)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return context.Canceled
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = h

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[int]Handler)
	return nil
}
