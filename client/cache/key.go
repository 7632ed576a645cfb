package cache

import (
	"fmt"
	"strings"
)

const sep = "/"

// Key identifies a cache entry, eg. [org, "students"] or [org, "students", id, "behavior-logs"].
type Key []string

// NewKey builds a Key. Empty segments or segments holding "/" are programming errors and panic.
func NewKey(segments ...string) Key {
	if len(segments) == 0 {
		panic("cache: empty key")
	}
	for i, s := range segments {
		if s == "" || strings.Contains(s, sep) {
			panic(fmt.Sprintf("cache: malformed key segment %d %q in %q", i, s, segments))
		}
	}
	k := make(Key, len(segments))
	copy(k, segments)
	return k
}

// Append returns a new Key made of k followed by segments.
func (k Key) Append(segments ...string) Key {
	return NewKey(append(append(make([]string, 0, len(k)+len(segments)), k...), segments...)...)
}

func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

func (k Key) String() string {
	return strings.Join(k, sep)
}
