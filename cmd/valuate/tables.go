// cmd/valuate/tables.go
package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"dealflow-workers/internal/valuation"
)

func newTablesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables [vertical]",
		Short: "Validate and print the configured multiple tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := opts.valuation.Tables()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				vertical, ok := valuation.ParseVertical(args[0])
				if !ok || tables[vertical] == nil {
					return fmt.Errorf("no multiple table for vertical %q", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), tables[vertical])
			}

			verticals := make([]string, 0, len(tables))
			for v := range tables {
				verticals = append(verticals, string(v))
			}
			sort.Strings(verticals)

			out := make([]*valuation.MultipleTable, 0, len(verticals))
			for _, v := range verticals {
				out = append(out, tables[valuation.Vertical(v)])
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}
