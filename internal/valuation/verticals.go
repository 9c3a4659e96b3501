// internal/valuation/verticals.go
package valuation

func upTo(v float64) *float64 { return &v }

// DefaultTables returns the built-in multiple tables keyed by vertical. Each
// call returns fresh copies so callers may mutate them safely.
func DefaultTables() map[Vertical]*MultipleTable {
	return map[Vertical]*MultipleTable{
		VerticalCleaning: {
			Vertical: VerticalCleaning,
			Brackets: []Bracket{
				{ThresholdLow: 0, ThresholdHigh: upTo(250_000), SDEMultipleMin: 1.5, SDEMultipleMax: 2.5},
				{ThresholdLow: 250_000, ThresholdHigh: upTo(500_000), SDEMultipleMin: 2.0, SDEMultipleMax: 3.0},
				{ThresholdLow: 500_000, ThresholdHigh: upTo(1_000_000), SDEMultipleMin: 2.5, SDEMultipleMax: 3.5},
				{ThresholdLow: 1_000_000, SDEMultipleMin: 3.5, SDEMultipleMax: 4.5},
			},
			RevenueMultiple: MultipleRange{Min: 0.4, Max: 1.0, Median: 0.6},
			EBITDAMultiple:  MultipleRange{Min: 3.0, Max: 6.0, Median: 4.5},
		},
		VerticalLandscape: {
			Vertical: VerticalLandscape,
			Brackets: []Bracket{
				{ThresholdLow: 0, ThresholdHigh: upTo(500_000), SDEMultipleMin: 1.8, SDEMultipleMax: 2.6},
				{ThresholdLow: 500_000, ThresholdHigh: upTo(1_000_000), SDEMultipleMin: 2.4, SDEMultipleMax: 3.2},
				{ThresholdLow: 1_000_000, ThresholdHigh: upTo(3_000_000), SDEMultipleMin: 3.0, SDEMultipleMax: 4.0},
				{ThresholdLow: 3_000_000, SDEMultipleMin: 3.8, SDEMultipleMax: 5.0},
			},
			RevenueMultiple: MultipleRange{Min: 0.5, Max: 1.1, Median: 0.7},
			EBITDAMultiple:  MultipleRange{Min: 3.5, Max: 6.5, Median: 5.0},
		},
		VerticalHVAC: {
			Vertical: VerticalHVAC,
			Brackets: []Bracket{
				{ThresholdLow: 0, ThresholdHigh: upTo(1_000_000), SDEMultipleMin: 2.2, SDEMultipleMax: 3.0},
				{ThresholdLow: 1_000_000, ThresholdHigh: upTo(5_000_000), SDEMultipleMin: 3.0, SDEMultipleMax: 4.2},
				{ThresholdLow: 5_000_000, SDEMultipleMin: 4.0, SDEMultipleMax: 6.0},
			},
			RevenueMultiple: MultipleRange{Min: 0.6, Max: 1.4, Median: 0.9},
			EBITDAMultiple:  MultipleRange{Min: 4.5, Max: 8.0, Median: 6.0},
		},
	}
}
