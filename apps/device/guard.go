package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/TTR-x/ttr-gestion-sub002/core/guard"
)

// printRecorder reports each guard decision on W.
type printRecorder struct {
	w io.Writer
}

func (r printRecorder) RecordGuardCheck(result string) {
	fmt.Fprintf(r.w, "guard: %s\n", result)
}

func (cli *commandLine) newGuardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Offline write guard",
	}
	cmd.AddCommand(cli.newGuardCheckCommand(), cli.newGuardWatchCommand())
	return cmd
}

func (cli *commandLine) newGuardCheckCommand() *cobra.Command {
	var offline, online bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Tell whether a local write may proceed now",
		Long: `Tell whether a local write may proceed now.

Connectivity is probed on the configured health URL unless --offline or --online is given.
Exits with an error when the write is refused.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := cli.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var conn guard.Connectivity
			switch {
			case offline:
				conn = guard.Static(false)
			case online:
				conn = guard.Static(true)
			default:
				m := guard.NewMonitor(cli.conf.Device.ProbeURL, cli.conf.Device.ProbeInterval, cli.logger)
				m.Probe(ctx)
				conn = m
			}

			out := cmd.OutOrStdout()
			g := guard.New(conn, store, &guard.WriterNotifier{W: out}, cli.logger, guard.WithRecorder(printRecorder{w: out}))
			return g.Require(ctx)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "assume the backend is unreachable")
	cmd.Flags().BoolVar(&online, "online", false, "assume the backend is reachable")
	cmd.MarkFlagsMutuallyExclusive("offline", "online")
	return cmd
}

func (cli *commandLine) newGuardWatchCommand() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print connectivity changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m := guard.NewMonitor(cli.conf.Device.ProbeURL, interval, cli.logger)

			changes, unsubscribe := m.Subscribe()
			defer unsubscribe()
			go m.Run(ctx)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s every %s\n", cli.conf.Device.ProbeURL, interval)
			for {
				select {
				case <-ctx.Done():
					return nil
				case isOnline, ok := <-changes:
					if !ok {
						return nil
					}
					state := "offline"
					if isOnline {
						state = "online"
					}
					fmt.Fprintf(out, "%s %s\n", time.Now().UTC().Format(time.RFC3339), state)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", cli.conf.Device.ProbeInterval, "time between probes")
	return cmd
}
