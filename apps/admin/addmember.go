package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

func (cli *commandLine) newAddMemberCommand() *cobra.Command {
	var (
		businessID, name, email string
		roles                   []string
	)
	cmd := &cobra.Command{
		Use:   "addmember",
		Short: "Create a member, or reactivate one and reset its password",
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
			m, err := cli.addMember(cmd.Context(), businessID, name, email, pwd, roles)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "member %s <%s> saved with roles %v\n", m.ID, m.Email, m.Roles)
			return nil
		},
	}
	cmd.Flags().StringVar(&businessID, "business", "", "the member's business ID (required for new members)")
	cmd.Flags().StringVar(&name, "name", "", "the member's display name (required for new members)")
	cmd.Flags().StringVar(&email, "email", "", "the member's email. The password will be prompted next.")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "roles to grant (owner, admin, staff); repeatable")
	return cmd
}

// addMember updates or creates a member.Member
func (cli *commandLine) addMember(ctx context.Context, businessID, name, email, pwd string, roles []string) (member.Member, error) {
	m, err := cli.memberSvc.GetByEmail(ctx, email)
	if err != nil {
		if err != member.ErrNotFound {
			return member.Member{}, err
		}
		nm := member.NewMember{
			BusinessID:      businessID,
			Name:            name,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		}
		if err = nm.Validate(ctx, cli.validate, cli.memberSvc); err != nil {
			return member.Member{}, err
		}
		return cli.memberSvc.Create(ctx, nm)
	}

	if len(roles) > 0 {
		for _, role := range roles {
			if member.RolePriority(role) == 0 {
				return member.Member{}, core.NewValidationError(nil, core.FieldError{Field: "roles", Error: "invalid roles"})
			}
		}
		m.Roles = roles
	}
	m.IsActive = true
	return cli.memberSvc.SetPassword(ctx, m, pwd)
}
