package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (cli *commandLine) newResetPasswordCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a member's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := promptPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Usage()
				return errHelp
			}
			if err = cli.resetPassword(cmd.Context(), email, pwd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the member's email. The password will be prompted next.")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	m, err := cli.memberSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = cli.memberSvc.SetPassword(ctx, m, pwd)
	return err
}
