// Package client wires a query cache and a mutation coordinator to every resource of the API.
package client

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/kumbukumbu/apps/shared"
	"github.com/trezcool/kumbukumbu/client/cache"
	"github.com/trezcool/kumbukumbu/client/changes"
	"github.com/trezcool/kumbukumbu/client/mutation"
	"github.com/trezcool/kumbukumbu/client/remote"
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/academic"
	"github.com/trezcool/kumbukumbu/core/access"
	"github.com/trezcool/kumbukumbu/core/behavior"
	"github.com/trezcool/kumbukumbu/core/list"
	"github.com/trezcool/kumbukumbu/core/student"
	"github.com/trezcool/kumbukumbu/core/task"
	"github.com/trezcool/kumbukumbu/services/changefeed"
)

type Client struct {
	co     *mutation.Coordinator
	logger core.Logger

	Students   *mutation.Handle[student.Student, student.NewStudent, student.UpdateStudent]
	Categories *mutation.Handle[behavior.Category, behavior.NewCategory, behavior.UpdateCategory]
	Tasks      *mutation.Handle[task.Task, task.NewTask, task.UpdateTask]
	Lists      *mutation.Handle[list.List, list.NewList, list.UpdateList]

	// scope.ParentID is the student
	BehaviorLogs *mutation.Handle[behavior.Log, behavior.NewLog, behavior.UpdateLog]
	AcademicLogs *mutation.Handle[academic.Log, academic.NewLog, academic.UpdateLog]

	// scope.ParentID is the list
	ListItems *mutation.Handle[list.Item, list.NewItem, list.UpdateItem]
}

type options struct {
	ctx        context.Context
	logger     core.Logger
	registerer prometheus.Registerer
	httpClient *http.Client
	validate   *validator.Validate
	nodeID     int64
}

type Option func(*options)

// WithContext bounds the background refetches of the cache.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

func WithLogger(logger core.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithValidator(validate *validator.Validate) Option {
	return func(o *options) { o.validate = validate }
}

// WithNode sets the snowflake node of the coordinator, unique per client of a process.
func WithNode(id int64) Option {
	return func(o *options) { o.nodeID = id }
}

// New returns a client of the API served at baseURL. token authenticates the requests and
// principal is the signed-in user with their memberships, checked before any read or write.
func New(baseURL string, token remote.TokenFunc, principal mutation.PrincipalFunc, opts ...Option) (*Client, error) {
	o := options{ctx: context.Background(), logger: core.NopLogger{}, registerer: prometheus.NewRegistry(), nodeID: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validate == nil {
		o.validate = shared.NewValidator(shared.NewTranslator())
	}

	var remoteOpts []remote.Option
	if o.httpClient != nil {
		remoteOpts = append(remoteOpts, remote.WithHTTPClient(o.httpClient))
	}
	rc := remote.NewClient(baseURL, token, remoteOpts...)

	registry := mutation.NewRegistry(principal)
	qc := cache.New(registry, cache.WithContext(o.ctx), cache.WithLogger(o.logger))
	co, err := mutation.NewCoordinator(qc, registry, access.NewGuard(), principal, o.validate,
		mutation.WithLogger(o.logger), mutation.WithRegisterer(o.registerer), mutation.WithNode(o.nodeID))
	if err != nil {
		return nil, err
	}

	return &Client{
		co:     co,
		logger: o.logger,
		Students: mutation.For(co, mutation.Resource[student.Student, student.NewStudent, student.UpdateStudent]{
			Kind:  student.Kind,
			Store: remote.NewStore[student.Student, student.NewStudent, student.UpdateStudent](rc, student.Kind, ""),
			ID:    func(s student.Student) string { return s.ID },
			Build: student.Build,
			Less:  student.Less,
			// tasks about the student & list entries pointing at it are deleted with it
			Dependents: []string{task.Kind, list.Kind},
		}),
		Categories: mutation.For(co, mutation.Resource[behavior.Category, behavior.NewCategory, behavior.UpdateCategory]{
			Kind:  behavior.CategoryKind,
			Store: remote.NewStore[behavior.Category, behavior.NewCategory, behavior.UpdateCategory](rc, behavior.CategoryKind, ""),
			ID:    func(c behavior.Category) string { return c.ID },
			Build: behavior.BuildCategory,
			Less:  behavior.LessCategory,
		}),
		BehaviorLogs: mutation.For(co, mutation.Resource[behavior.Log, behavior.NewLog, behavior.UpdateLog]{
			Kind:       behavior.LogKind,
			Parent:     student.Kind,
			Store:      remote.NewStore[behavior.Log, behavior.NewLog, behavior.UpdateLog](rc, behavior.LogKind, student.Kind),
			ID:         func(l behavior.Log) string { return l.ID },
			Build:      behavior.BuildLog,
			Less:       behavior.LessLog,
			Dependents: []string{list.Kind},
		}),
		AcademicLogs: mutation.For(co, mutation.Resource[academic.Log, academic.NewLog, academic.UpdateLog]{
			Kind:       academic.Kind,
			Parent:     student.Kind,
			Store:      remote.NewStore[academic.Log, academic.NewLog, academic.UpdateLog](rc, academic.Kind, student.Kind),
			ID:         func(l academic.Log) string { return l.ID },
			Build:      academic.Build,
			Less:       academic.Less,
			Dependents: []string{list.Kind},
		}),
		Tasks: mutation.For(co, mutation.Resource[task.Task, task.NewTask, task.UpdateTask]{
			Kind:  task.Kind,
			Store: remote.NewStore[task.Task, task.NewTask, task.UpdateTask](rc, task.Kind, ""),
			ID:    func(t task.Task) string { return t.ID },
			Build: task.Build,
			Less:  task.Less,
		}),
		Lists: mutation.For(co, mutation.Resource[list.List, list.NewList, list.UpdateList]{
			Kind:  list.Kind,
			Store: remote.NewStore[list.List, list.NewList, list.UpdateList](rc, list.Kind, ""),
			ID:    func(l list.List) string { return l.ID },
			Build: list.Build,
			Less:  list.Less,
		}),
		ListItems: mutation.For(co, mutation.Resource[list.Item, list.NewItem, list.UpdateItem]{
			Kind:   list.ItemKind,
			Parent: list.Kind,
			Store:  remote.NewStore[list.Item, list.NewItem, list.UpdateItem](rc, list.ItemKind, list.Kind),
			ID:     func(it list.Item) string { return it.ID },
			Build:  list.BuildItem,
			Less:   list.LessItem,
		}),
	}, nil
}

func (c *Client) Coordinator() *mutation.Coordinator { return c.co }

func (c *Client) Cache() *cache.Cache { return c.co.Cache() }

// Follow refetches what other clients change, in the given organizations only when any, until ctx is done.
func (c *Client) Follow(ctx context.Context, bus changefeed.Bus, orgIDs ...string) error {
	opts := []changes.Option{changes.WithLogger(c.logger)}
	if len(orgIDs) > 0 {
		opts = append(opts, changes.WithOrganizations(orgIDs...))
	}
	return changes.Follow(ctx, bus, c.co.Cache(), opts...)
}
