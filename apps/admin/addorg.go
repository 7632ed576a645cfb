package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/org"
)

func (cli *commandLine) addOrgCmd() *cobra.Command {
	var name, owner string
	cmd := &cobra.Command{
		Use:   "addorg",
		Short: "Create an organization owned by an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			usr, err := cli.usrSvc.GetByEmail(ctx, owner)
			if err != nil {
				return err
			}
			no := org.NewOrganization{Name: name}
			if err = core.Validate(cli.validate, &no); err != nil {
				return err
			}
			o, err := cli.orgSvc.Create(ctx, usr.ID, no)
			if err != nil {
				return err
			}
			cli.printf("Organization %q created (id %s)\n", o.Name, o.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "the organization's name (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "the owner's email (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
