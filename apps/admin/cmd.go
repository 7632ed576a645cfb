package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/user"
)

var readPasswordFunc = term.ReadPassword // mockable

type commandLine struct {
	db       *sqlx.DB
	usrSvc   *user.Service
	orgSvc   *org.Service
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Kumbukumbu administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.addOrgCmd(),
	)
	return root
}

// run executes args (without the program name).
func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

func newCommandLine(db *sqlx.DB, usrSvc *user.Service, orgSvc *org.Service, validate *validator.Validate) *commandLine {
	return &commandLine{db: db, usrSvc: usrSvc, orgSvc: orgSvc, validate: validate, out: os.Stdout}
}
