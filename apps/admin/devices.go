package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (cli *commandLine) newDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect the devices registered by businesses",
	}

	var businessID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the devices of a business, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if businessID == "" {
				_ = cmd.Usage()
				return errHelp
			}
			devices, err := cli.deviceRepo.QueryDevices(cmd.Context(), businessID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE ID\tLABEL\tFIRST SEEN\tLAST SEEN")
			for _, d := range devices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					d.DeviceID, d.Label, d.FirstSeenAt.Format(time.RFC3339), d.LastSeenAt.Format(time.RFC3339))
			}
			fmt.Fprintf(w, "\n%d device(s)\n", len(devices))
			return w.Flush()
		},
	}
	list.Flags().StringVar(&businessID, "business", "", "the business ID")

	cmd.AddCommand(list)
	return cmd
}
