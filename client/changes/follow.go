// Package changes keeps a client cache in step with writes made by other clients.
package changes

import (
	"context"
	"strings"

	"github.com/trezcool/kumbukumbu/client/cache"
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/services/changefeed"
)

type options struct {
	logger core.Logger
	orgs   map[string]bool
}

type Option func(*options)

func WithLogger(logger core.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOrganizations only follows the changes of the given organizations.
func WithOrganizations(ids ...string) Option {
	return func(o *options) {
		o.orgs = make(map[string]bool, len(ids))
		for _, id := range ids {
			o.orgs[id] = true
		}
	}
}

// Follow invalidates the collection (and its details) of every change published on bus, until ctx is done.
// Only keys the cache already knows are refetched.
func Follow(ctx context.Context, bus changefeed.Bus, c *cache.Cache, opts ...Option) error {
	o := options{logger: core.NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	return bus.Subscribe(ctx, func(ch changefeed.Change) {
		if len(ch.Key) == 0 || (o.orgs != nil && !o.orgs[ch.OrganizationID]) {
			return
		}
		for _, seg := range ch.Key {
			if seg == "" || strings.Contains(seg, "/") {
				o.logger.Warn("ignoring change with a malformed key", map[string]interface{}{"key": ch.Key})
				return
			}
		}
		o.logger.Debug("change received", map[string]interface{}{"key": ch.Key, "id": ch.ID, "op": string(ch.Op)})
		c.InvalidatePrefix(cache.NewKey(ch.Key...))
	})
}
