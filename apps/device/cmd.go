package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/storage/localcache"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf      *core.Config
	logger    core.Logger
	cachePath string
}

func (cli *commandLine) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ttr-device",
		Short:         "Local cache and offline write guard of a TTR Gestion device",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.PersistentFlags().StringVar(&cli.cachePath, "cache", cli.conf.Device.CachePath, "path of the local cache database")

	root.AddCommand(
		cli.newGuardCommand(),
		cli.newCacheCommand(),
		cli.newRegisterCommand(),
	)
	return root
}

func (cli *commandLine) openStore(ctx context.Context) (*localcache.Store, error) {
	return localcache.Open(ctx, cli.cachePath)
}
