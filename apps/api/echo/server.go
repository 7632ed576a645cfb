package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/academic"
	"github.com/trezcool/kumbukumbu/core/access"
	"github.com/trezcool/kumbukumbu/core/assist"
	"github.com/trezcool/kumbukumbu/core/behavior"
	"github.com/trezcool/kumbukumbu/core/list"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/student"
	"github.com/trezcool/kumbukumbu/core/task"
	"github.com/trezcool/kumbukumbu/core/user"
	"github.com/trezcool/kumbukumbu/services/changefeed"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Translator     ut.Translator
		Validate       *validator.Validate
		DisableReqLogs bool
		// Registry collects the HTTP metrics and is served on /metrics.
		Registry *prometheus.Registry

		Guard        access.Authorizer
		UserSvc      *user.Service
		ResetSvc     *user.PasswordResetService
		OrgSvc       *org.Service
		StudentSvc   *student.Service
		CategorySvc  *behavior.CategoryService
		BehaviorSvc  *behavior.LogService
		AcademicSvc  *academic.Service
		TaskSvc      *task.Service
		ListSvc      *list.Service
		ListItemSvc  *list.ItemService
		ListShareSvc *list.ShareService
		Completer    assist.ChatCompleter
		Bus          changefeed.Bus
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API. signalShutdown is called when a handler fails with a shutdown error.
func NewServer(opts *Options, signalShutdown func()) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup(signalShutdown)
	return s
}

func (s *server) setup(signalShutdown func()) {
	conf := s.opts.Conf
	if s.opts.Logger == nil {
		s.opts.Logger = core.NopLogger{}
	}
	if s.opts.Registry == nil {
		s.opts.Registry = prometheus.NewRegistry()
	}
	if signalShutdown == nil {
		signalShutdown = func() {}
	}

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(newHTTPMetrics(s.opts.Registry).middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{})))

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf)

	registerUserAPI(v1, jwt, userApi{conf: conf, svc: s.opts.UserSvc, resets: s.opts.ResetSvc, orgs: s.opts.OrgSvc, validate: s.opts.Validate})

	orgs := v1.Group("/organizations", jwt)
	og := orgs.Group("/:org", orgMiddleware(s.opts.Guard, s.opts.UserSvc, s.opts.OrgSvc))
	registerOrgAPI(orgs, og, orgApi{svc: s.opts.OrgSvc, users: s.opts.UserSvc, validate: s.opts.Validate})

	validate, bus, logger := s.opts.Validate, s.opts.Bus, s.opts.Logger
	(&resourceAPI[student.Student, student.NewStudent, student.UpdateStudent]{
		kind: student.Kind, store: s.opts.StudentSvc, id: func(st student.Student) string { return st.ID },
		validate: validate, bus: bus, logger: logger,
	}).register(og)
	(&resourceAPI[behavior.Category, behavior.NewCategory, behavior.UpdateCategory]{
		kind: behavior.CategoryKind, store: s.opts.CategorySvc, id: func(c behavior.Category) string { return c.ID },
		validate: validate, bus: bus, logger: logger,
	}).register(og)
	(&resourceAPI[behavior.Log, behavior.NewLog, behavior.UpdateLog]{
		kind: behavior.LogKind, parent: student.Kind, store: s.opts.BehaviorSvc, id: func(l behavior.Log) string { return l.ID },
		validate: validate, bus: bus, logger: logger,
	}).register(og)
	(&resourceAPI[academic.Log, academic.NewLog, academic.UpdateLog]{
		kind: academic.Kind, parent: student.Kind, store: s.opts.AcademicSvc, id: func(l academic.Log) string { return l.ID },
		validate: validate, bus: bus, logger: logger,
	}).register(og)
	(&resourceAPI[task.Task, task.NewTask, task.UpdateTask]{
		kind: task.Kind, store: s.opts.TaskSvc, id: func(t task.Task) string { return t.ID },
		validate: validate, bus: bus, logger: logger,
	}).register(og)
	(&resourceAPI[list.List, list.NewList, list.UpdateList]{
		kind: list.Kind, store: s.opts.ListSvc, id: func(l list.List) string { return l.ID },
		validate: validate, bus: bus, logger: logger,
	}).register(og)
	(&resourceAPI[list.Item, list.NewItem, list.UpdateItem]{
		kind: list.ItemKind, parent: list.Kind, store: s.opts.ListItemSvc, id: func(it list.Item) string { return it.ID },
		validate: validate, bus: bus, logger: logger,
	}).register(og)
	registerShareAPI(og, shareApi{svc: s.opts.ListShareSvc, validate: validate})

	completer := s.opts.Completer
	if completer == nil {
		completer = assist.Console{}
	}
	registerSummaryAPI(og, summaryApi{
		students:     s.opts.StudentSvc,
		categories:   s.opts.CategorySvc,
		behaviorLogs: s.opts.BehaviorSvc,
		academicLogs: s.opts.AcademicSvc,
		completer:    completer,
	})
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Kumbukumbu API!")
}
