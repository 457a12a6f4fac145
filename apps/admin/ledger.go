package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
)

func (cli *commandLine) newLedgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Work with the deletion/restoration history",
	}

	var (
		businessID, out, restored string
		filter                    ledger.QueryFilter
		entityType                string
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Export the deletion history of a business as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if businessID == "" {
				_ = cmd.Usage()
				return errHelp
			}
			filter.EntityType = ledger.EntityType(entityType)
			if filter.EntityType != "" && !filter.EntityType.Valid() {
				return core.NewValidationError(nil, core.FieldError{Field: "type", Error: "unknown entity type"})
			}
			if restored != "" {
				b, err := strconv.ParseBool(restored)
				if err != nil {
					return core.NewValidationError(err, core.FieldError{Field: "restored", Error: "must be a boolean"})
				}
				filter.Restored = &b
			}
			filter.Clean()

			entries, err := cli.ledgerRepo.QueryEntries(cmd.Context(), businessID, filter, core.DBOrdering{Field: "deleted_at", Ascending: true})
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrap(err, "creating export file")
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			if err = ledger.Export(w, entries); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "%d entries exported to %s\n", len(entries), out)
			}
			return nil
		},
	}
	export.Flags().StringVar(&businessID, "business", "", "the business ID")
	export.Flags().StringVar(&filter.WorkspaceID, "workspace", "", "only entries of this workspace")
	export.Flags().StringVar(&entityType, "type", "", "only entries of this entity type")
	export.Flags().StringVar(&restored, "restored", "", "only restored (true) or pending (false) entries")
	export.Flags().StringVarP(&out, "out", "o", "deletions.xlsx", "output file; - for stdout")

	cmd.AddCommand(export)
	return cmd
}
