package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/user"
)

var errEmptyPassword = errors.New("password may not be empty")

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or reset the password of an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			usr, err := cli.usrSvc.GetByEmail(ctx, email)
			switch {
			case err == nil:
				if err = cli.usrSvc.ResetPassword(ctx, usr.Email, pwd); err != nil {
					return err
				}
				cli.printf("User %s updated\n", usr.Email)
				return nil
			case core.KindOf(err) != core.KindNotFound:
				return err
			}

			nu := user.NewUser{Name: name, Email: email, Password: pwd, PasswordConfirm: pwd}
			if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
				return err
			}
			if usr, err = cli.usrSvc.Create(ctx, nu); err != nil {
				return err
			}
			cli.printf("User %s created (id %s)\n", usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "the user's full name (required)")
	cmd.Flags().StringVar(&email, "email", "", "the user's email (required); the password is prompted next")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
