// cmd/valuate/estimate.go
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/valuation"
)

type estimateFlags struct {
	vertical        string
	revenue         float64
	sde             float64
	askingPrice     float64
	yearsInBusiness int
	employees       int
	topClientShare  float64
	revenueGrowth   float64
	location        string
	description     string
	signals         []string
	noDerive        bool
}

type estimateResult struct {
	*valuation.Estimate
	Projection format.Projection `json:"projection"`
}

func newEstimateCmd(opts *rootOptions) *cobra.Command {
	f := &estimateFlags{}
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate a valuation range and financing scenario",
		Example: `  valuate estimate --vertical cleaning --revenue 2500000 --sde 470000 --signal client_concentration=+
  valuate estimate --vertical hvac --revenue 900000 --asking-price 1200000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vertical, ok := valuation.ParseVertical(f.vertical)
			if !ok {
				return fmt.Errorf("unknown vertical %q", f.vertical)
			}
			tables, err := opts.valuation.Tables()
			if err != nil {
				return err
			}
			table := tables[vertical]
			if table == nil {
				return fmt.Errorf("no multiple table for vertical %q", vertical)
			}

			explicit, err := parseSignals(f.signals)
			if err != nil {
				return err
			}

			fin := f.financials(cmd, vertical)
			signals := explicit
			if !f.noDerive {
				signals = valuation.MergeSignals(explicit, valuation.DeriveSignals(fin))
			}

			est, err := valuation.EstimateListing(fin, table, signals, &opts.valuation.Financing, opts.valuation.Options()...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), estimateResult{Estimate: est, Projection: format.ProjectEstimate(est)})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.vertical, "vertical", "", "cleaning, landscape or hvac")
	fl.Float64Var(&f.revenue, "revenue", 0, "annual revenue")
	fl.Float64Var(&f.sde, "sde", 0, "seller's discretionary earnings")
	fl.Float64Var(&f.askingPrice, "asking-price", 0, "asking price")
	fl.IntVar(&f.yearsInBusiness, "years", 0, "years in business")
	fl.IntVar(&f.employees, "employees", 0, "employee count")
	fl.Float64Var(&f.topClientShare, "top-client-share", 0, "revenue share of the largest client (0-1)")
	fl.Float64Var(&f.revenueGrowth, "revenue-growth", 0, "year-over-year revenue growth (0.08 = 8%)")
	fl.StringVar(&f.location, "location", "", "city or region served")
	fl.StringVar(&f.description, "description", "", "listing description")
	fl.StringArrayVar(&f.signals, "signal", nil, "adjustment as factor=+ or factor=- (repeatable)")
	fl.BoolVar(&f.noDerive, "no-derive", false, "skip signals derived from the financials")
	_ = cmd.MarkFlagRequired("vertical")
	return cmd
}

// financials only sets fields whose flags were given, so an omitted figure
// stays missing rather than zero.
func (f *estimateFlags) financials(cmd *cobra.Command, vertical valuation.Vertical) valuation.ListingFinancials {
	changed := cmd.Flags().Changed
	fin := valuation.ListingFinancials{VerticalSlug: vertical, Location: f.location, Description: f.description}
	if changed("revenue") {
		fin.Revenue = &f.revenue
	}
	if changed("sde") {
		fin.SDE = &f.sde
	}
	if changed("asking-price") {
		fin.AskingPrice = &f.askingPrice
	}
	if changed("years") {
		fin.YearsInBusiness = &f.yearsInBusiness
	}
	if changed("employees") {
		fin.Employees = &f.employees
	}
	if changed("top-client-share") {
		fin.TopClientShare = &f.topClientShare
	}
	if changed("revenue-growth") {
		fin.RevenueGrowth = &f.revenueGrowth
	}
	return fin
}

// parseSignals reads factor=+ / factor=- pairs. favorable and unfavorable
// are accepted as long forms.
func parseSignals(raw []string) ([]valuation.AdjustmentSignal, error) {
	out := make([]valuation.AdjustmentSignal, 0, len(raw))
	for _, r := range raw {
		name, dir, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("signal %q: want factor=+ or factor=-", r)
		}
		factor := valuation.Factor(strings.TrimSpace(name))
		if !valuation.KnownFactor(factor) {
			return nil, fmt.Errorf("signal %q: unknown factor %q", r, factor)
		}

		var favorable bool
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "+", "favorable", "good":
			favorable = true
		case "-", "unfavorable", "bad":
			favorable = false
		default:
			return nil, fmt.Errorf("signal %q: direction must be + or -", r)
		}
		out = append(out, valuation.AdjustmentSignal{Factor: factor, Favorable: favorable})
	}
	return out, nil
}
