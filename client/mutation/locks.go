package mutation

import (
	"sort"
	"sync"

	"github.com/trezcool/kumbukumbu/client/cache"
)

// keyLocks serializes intents touching the same keys. Waiters on a key are served in arrival order.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// normalize sorts & dedups keys so that every intent locks them in the same order.
func normalize(keys []cache.Key) []cache.Key {
	seen := make(map[string]bool, len(keys))
	out := make([]cache.Key, 0, len(keys))
	for _, k := range keys {
		if s := k.String(); !seen[s] {
			seen[s] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Lock locks normalized keys.
func (l *keyLocks) Lock(keys []cache.Key) {
	for _, k := range keys {
		s := k.String()
		l.mu.Lock()
		kl, ok := l.locks[s]
		if !ok {
			kl = &keyLock{ch: make(chan struct{}, 1)}
			l.locks[s] = kl
		}
		kl.refs++
		l.mu.Unlock()

		kl.ch <- struct{}{}
	}
}

func (l *keyLocks) Unlock(keys []cache.Key) {
	for i := len(keys) - 1; i >= 0; i-- {
		s := keys[i].String()
		l.mu.Lock()
		kl := l.locks[s]
		<-kl.ch
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, s)
		}
		l.mu.Unlock()
	}
}
