// Package cli implements ledgerctl, the operator tool for inspecting the
// registration ledger without starting the server.
package cli

import (
	"github.com/spf13/cobra"

	"imageref/internal/platform/config"
	"imageref/internal/registration/store"
)

type rootOptions struct {
	ledgerPath string
}

// RootCmd builds the ledgerctl command tree. The ledger path defaults to
// LEDGER_PATH.
func RootCmd() *cobra.Command {
	opts := &rootOptions{}
	defaults, _ := config.LedgerFromEnv()

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect the image reference registration ledger",
		Long: `ledgerctl reads the registration CSV the server uses and reports on it.
It never writes to the ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ledgerPath, "ledger", defaults.Path, "path to the registration CSV")

	cmd.AddCommand(listCmd(opts))
	cmd.AddCommand(lookupCmd(opts))
	cmd.AddCommand(validateCmd(opts))
	return cmd
}

func (o *rootOptions) store() *store.CSVStore {
	return store.NewCSV(o.ledgerPath)
}
