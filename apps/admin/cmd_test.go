package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kumbukumbu/apps/shared"
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/user"
	"github.com/trezcool/kumbukumbu/storage/database/sqlxdb"
	testutil "github.com/trezcool/kumbukumbu/tests"
)

const pwd = "Kumbu-kumbu-2024!"

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	db := testutil.PrepareDB(t)
	out := new(bytes.Buffer)
	cli := newCommandLine(
		db,
		user.NewService(sqlxdb.NewUserRepository(db)),
		org.NewService(sqlxdb.NewOrganizationRepository(db)),
		shared.NewValidator(shared.NewTranslator()),
	)
	cli.out = out
	return cli, out
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErrStr string
}

func (cli *commandLine) runTests(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(context.Background(), tt.args)
			if tt.wantErrStr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErrStr)
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	type call struct {
		command string
		args    []string
	}
	var calls []call
	orig := gooseRunFunc
	gooseRunFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		calls = append(calls, call{command, args})
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = orig })

	cli.runTests(t, []cliTest{
		{name: "no command", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s)"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	})
	assert.Equal(t, []call{
		{"up", []string{}},
		{"up-to", []string{"2"}},
		{"create", []string{"course", "sql"}},
	}, calls)
}

func Test_commandLine_migrateForReal(t *testing.T) {
	cli, _ := setup(t)
	// the test database is already up to date
	require.NoError(t, cli.run(context.Background(), []string{"migrate", "up"}))
	require.NoError(t, cli.run(context.Background(), []string{"migrate", "status"}))
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()
	mockPassword(t, pwd)

	cli.runTests(t, []cliTest{
		{name: "no flags", args: []string{"adduser"}, wantErrStr: `required flag(s) "email", "name" not set`},
		{name: "invalid email", args: []string{"adduser", "--name", "Ana", "--email", "ana"}, wantErrStr: "email"},
		{name: "create", args: []string{"adduser", "--name", "Ana", "--email", "ANA@test.cd"}},
	})
	usr, err := cli.usrSvc.GetByEmail(ctx, "ana@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "Ana", usr.Name)
	assert.NoError(t, usr.CheckPassword(pwd))
	assert.Contains(t, out.String(), "User ana@test.cd created")

	t.Run("existing user gets a new password", func(t *testing.T) {
		mockPassword(t, pwd+"?")
		require.NoError(t, cli.run(ctx, []string{"adduser", "--name", "Ana", "--email", "ana@test.cd"}))
		updated, err := cli.usrSvc.GetByEmail(ctx, "ana@test.cd")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, updated.ID)
		assert.NoError(t, updated.CheckPassword(pwd+"?"))
	})

	t.Run("weak password", func(t *testing.T) {
		mockPassword(t, "12345678")
		err := cli.run(ctx, []string{"adduser", "--name", "Bob", "--email", "bob@test.cd"})
		assert.Equal(t, core.KindValidation, core.KindOf(err))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()
	repo := sqlxdb.NewUserRepository(cli.db)
	usr := testutil.CreateUser(t, repo, "Ana", "ana@test.cd", pwd)

	t.Run("empty password", func(t *testing.T) {
		mockPassword(t, "")
		err := cli.run(ctx, []string{"resetpassword", "--email", usr.Email})
		assert.ErrorIs(t, err, errEmptyPassword)
	})

	mockPassword(t, "new-password")
	cli.runTests(t, []cliTest{
		{name: "no email", args: []string{"resetpassword"}, wantErrStr: `required flag(s) "email" not set`},
		{name: "unknown user", args: []string{"resetpassword", "--email", "bob@test.cd"}, wantErrStr: user.ErrNotFound.Error()},
		{name: "reset", args: []string{"resetpassword", "--email", " ANA@test.cd"}},
	})

	refreshed, err := cli.usrSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash), "failed to update new password")
	assert.NoError(t, refreshed.CheckPassword("new-password"))
}

func Test_commandLine_addOrg(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, sqlxdb.NewUserRepository(cli.db), "Ana", "ana@test.cd", pwd)

	cli.runTests(t, []cliTest{
		{name: "unknown owner", args: []string{"addorg", "--name", "School", "--owner", "bob@test.cd"}, wantErrStr: user.ErrNotFound.Error()},
		{name: "blank name", args: []string{"addorg", "--name", " ", "--owner", usr.Email}, wantErrStr: "required"},
		{name: "create", args: []string{"addorg", "--name", " Kivu School ", "--owner", usr.Email}},
	})

	orgs, err := cli.orgSvc.QueryForUser(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Kivu School", orgs[0].Name)
	assert.Contains(t, out.String(), `Organization "Kivu School" created`)

	members, err := cli.orgSvc.Members(ctx, orgs[0].ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, org.RoleOwner, members[0].Role)
}
