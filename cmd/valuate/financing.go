// cmd/valuate/financing.go
package main

import (
	"github.com/spf13/cobra"

	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/valuation"
)

type financingResult struct {
	*valuation.FinancingScenario
	Projection format.Projection `json:"projection"`
}

func newFinancingCmd(opts *rootOptions) *cobra.Command {
	var price, sde, down, rate float64
	var term int

	cmd := &cobra.Command{
		Use:     "financing",
		Short:   "Compute an SBA-style financing scenario for a price",
		Example: `  valuate financing --price 1000000 --sde 250000 --down 0.2 --rate 0.065 --term 84`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.valuation.Financing
			if cmd.Flags().Changed("down") {
				cfg.DownPaymentFraction = down
			}
			if cmd.Flags().Changed("rate") {
				cfg.AnnualInterestRate = rate
			}
			if cmd.Flags().Changed("term") {
				cfg.TermMonths = term
			}

			scenario, err := valuation.ComputeFinancing(price, sde, &cfg)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), financingResult{
				FinancingScenario: scenario,
				Projection:        format.ProjectFinancing(scenario),
			})
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&price, "price", 0, "purchase price")
	fl.Float64Var(&sde, "sde", 0, "seller's discretionary earnings")
	fl.Float64Var(&down, "down", 0, "down payment fraction (0.1 = 10%)")
	fl.Float64Var(&rate, "rate", 0, "annual interest rate (0.08 = 8%)")
	fl.IntVar(&term, "term", 0, "loan term in months")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}
