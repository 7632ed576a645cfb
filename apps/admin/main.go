package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/kumbukumbu/apps/shared"
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/user"
	logsvc "github.com/trezcool/kumbukumbu/services/logger"
	"github.com/trezcool/kumbukumbu/storage/database"
	"github.com/trezcool/kumbukumbu/storage/database/sqlxdb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conf := core.NewConfig()
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer logger.Sync()

	// set up DB
	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		return err
	}
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer db.Close()
	if err = db.PingContext(ctx); err != nil {
		return err
	}

	user.LoadCommonPasswords(logger)

	// start CLI
	cli := newCommandLine(
		db,
		user.NewService(sqlxdb.NewUserRepository(db)),
		org.NewService(sqlxdb.NewOrganizationRepository(db)),
		shared.NewValidator(shared.NewTranslator()),
	)
	return cli.run(ctx, os.Args[1:])
}
