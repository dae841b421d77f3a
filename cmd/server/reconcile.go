package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair registration references between events and users",
		Long: `Repair registration references between events and users.

The event side is authoritative: registrants that are not live users are
dropped, missing user references are added, stale user references are removed.
Prints the repair report as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.offlineService().Registration.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
