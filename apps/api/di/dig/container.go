package dig_container

import (
	"context"
	"log"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/kumbukumbu/apps/api/echo"
	"github.com/trezcool/kumbukumbu/apps/shared"
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
	emailsvc "github.com/trezcool/kumbukumbu/services/email"
	logsvc "github.com/trezcool/kumbukumbu/services/logger"
	"github.com/trezcool/kumbukumbu/storage/database"
	"github.com/trezcool/kumbukumbu/storage/database/sqlxdb"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Shutdown receives the signal that stops the API.
type Shutdown chan os.Signal

type repositories struct {
	dig.Out
	Users    *sqlxdb.UserRepository
	Orgs     *sqlxdb.OrganizationRepository
	Students *sqlxdb.StudentRepository
	Behavior *sqlxdb.BehaviorRepository
	Academic *sqlxdb.AcademicRepository
	Tasks    *sqlxdb.TaskRepository
	Lists    *sqlxdb.ListRepository
}

type optionsParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Translator ut.Translator
	Validate   *validator.Validate
	Registry   *prometheus.Registry
	Bus        changefeed.Bus
	MailSvc    core.EmailService

	Users    *sqlxdb.UserRepository
	Orgs     *sqlxdb.OrganizationRepository
	Students *sqlxdb.StudentRepository
	Behavior *sqlxdb.BehaviorRepository
	Academic *sqlxdb.AcademicRepository
	Tasks    *sqlxdb.TaskRepository
	Lists    *sqlxdb.ListRepository
}

func newLogger(conf *core.Config) (core.Logger, error) {
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		return nil, err
	}
	return logsvc.NewRollbarLogger(zl.Named("api"), conf), nil
}

func newDBLogger(conf *core.Config) (core.Logger, error) {
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		return nil, err
	}
	return logsvc.NewRollbarLogger(zl.Named("db"), conf), nil
}

func newDB(ctx context.Context) func(*core.Config, DBLoggerParam) *sqlx.DB {
	return func(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
		db, err := database.Setup(ctx, conf)
		if err != nil {
			loggerParam.Logger.Fatal("setting up database", err)
		}
		return db
	}
}

func newRepositories(db *sqlx.DB) repositories {
	return repositories{
		Users:    sqlxdb.NewUserRepository(db),
		Orgs:     sqlxdb.NewOrganizationRepository(db),
		Students: sqlxdb.NewStudentRepository(db),
		Behavior: sqlxdb.NewBehaviorRepository(db),
		Academic: sqlxdb.NewAcademicRepository(db),
		Tasks:    sqlxdb.NewTaskRepository(db),
		Lists:    sqlxdb.NewListRepository(db),
	}
}

func newBus(ctx context.Context) func(*core.Config, core.Logger) (changefeed.Bus, error) {
	return func(conf *core.Config, logger core.Logger) (changefeed.Bus, error) {
		return changefeed.New(ctx, conf, logger)
	}
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newOptions(p optionsParam) *echoapi.Options {
	usrSvc := user.NewService(p.Users)
	return &echoapi.Options{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Translator:   p.Translator,
		Validate:     p.Validate,
		Registry:     p.Registry,
		Guard:        access.NewGuard(),
		UserSvc:      usrSvc,
		ResetSvc:     user.NewPasswordResetService(p.Conf, usrSvc, p.MailSvc),
		OrgSvc:       org.NewService(p.Orgs),
		StudentSvc:   student.NewService(p.Students),
		CategorySvc:  behavior.NewCategoryService(p.Behavior),
		BehaviorSvc:  behavior.NewLogService(p.Behavior, p.Behavior, p.Students),
		AcademicSvc:  academic.NewService(p.Academic, p.Students),
		TaskSvc:      task.NewService(p.Tasks, p.Students),
		ListSvc:      list.NewService(p.Lists),
		ListItemSvc:  list.NewItemService(p.Lists),
		ListShareSvc: list.NewShareService(p.Lists, p.Orgs, usrSvc, p.MailSvc),
		Completer:    assist.Console{},
		Bus:          p.Bus,
	}
}

func newShutdown() Shutdown {
	return make(Shutdown, 1)
}

func newServer(opts *echoapi.Options, shutdown Shutdown) echoapi.Server {
	return echoapi.NewServer(opts, func() {
		select {
		case shutdown <- syscall.SIGTERM:
		default:
		}
	})
}

// New returns the dependency injection container of the API. ctx bounds the database setup
// and the changefeed subscriptions.
func New(ctx context.Context) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB(ctx)))
	must(c.Provide(newRepositories))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newBus(ctx)))
	must(c.Provide(newRegistry))
	must(c.Provide(shared.NewTranslator))
	must(c.Provide(shared.NewValidator))
	must(c.Provide(newOptions))
	must(c.Provide(newShutdown))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
