package main

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	validate   *validator.Validate
	memberSvc  member.Service
	deviceRepo device.Repository
	ledgerRepo ledger.Repository
}

// run executes args (program name included) and returns the command error, if any.
func (cli *commandLine) run(args []string, out ...io.Writer) error {
	root := cli.newRootCommand()
	if len(out) > 0 {
		root.SetOut(out[0])
	}
	root.SetArgs(args[1:])
	return root.Execute()
}

func (cli *commandLine) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "TTR Gestion administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.AddCommand(
		cli.newMigrateCommand(),
		cli.newAddMemberCommand(),
		cli.newResetPasswordCommand(),
		cli.newDevicesCommand(),
		cli.newLedgerCommand(),
	)
	return root
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
