package main

import (
	"github.com/spf13/cobra"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if err = cli.usrSvc.ResetPassword(cmd.Context(), email, pwd); err != nil {
				return err
			}
			cli.printf("Password of %s reset\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email (required); the password is prompted next")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
