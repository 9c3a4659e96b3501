// cmd/valuate/root.go
package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"dealflow-workers/internal/common/config"
)

type rootOptions struct {
	configPath string
	valuation  config.ValuationConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "valuate",
		Short: "Offline listing valuation and financing estimator",
		Long: `valuate runs the same estimator the workers use, without Zeebe or a database.
Multiple tables and financing defaults come from the valuation section of --config,
or from the built-in tables when no file is given.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			v, err := config.LoadValuation(opts.configPath)
			if err != nil {
				return err
			}
			opts.valuation = v
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML file with a valuation section")

	cmd.AddCommand(newEstimateCmd(opts))
	cmd.AddCommand(newFinancingCmd(opts))
	cmd.AddCommand(newTablesCmd(opts))
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
