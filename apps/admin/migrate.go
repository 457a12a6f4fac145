package main

import (
	"github.com/spf13/cobra"

	"github.com/TTR-x/ttr-gestion-sub002/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run goose migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
