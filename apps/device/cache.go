package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

func (cli *commandLine) newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and seed the local cache",
	}
	cmd.AddCommand(cli.newSetDevicesCommand(), cli.newShowCommand())
	return cmd
}

func (cli *commandLine) newSetDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-devices COUNT",
		Short: "Overwrite the known device count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return core.NewValidationError(err, core.FieldError{Field: "count", Error: "must be an integer"})
			}
			store, err := cli.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err = store.SetKnownDeviceCount(cmd.Context(), n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "known devices: %d\n", n)
			return nil
		},
	}
}

func (cli *commandLine) newShowCommand() *cobra.Command {
	var workspaceID, entityType string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the known device count and the cached records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := cli.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			count, err := store.KnownDeviceCount(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "known devices: %d\n", count)
			if workspaceID == "" {
				return nil
			}

			records, err := store.List(ctx, workspaceID, entityType)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "no cached records")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tID\tWORKSPACE\tVERSION\tUPDATED\tDEVICE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.EntityType, r.EntityID, r.WorkspaceID, r.Version, r.UpdatedAt.Format(time.RFC3339), r.DeviceID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "also list the records of this workspace")
	cmd.Flags().StringVar(&entityType, "type", "", "only records of this entity type")
	return cmd
}
