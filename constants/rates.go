package constants

import "github.com/shopspring/decimal"

// statutory withholding rates by category and year. Values before the first
// listed year fall back to the earliest entry; missing years use the latest
// entry at or before the requested year.
var statutoryRates = map[Category][]rateEntry{
	IndependentWork: {
		{year: 2015, rate: decimal.NewFromFloat(0.25)},
		{year: 2023, rate: decimal.NewFromFloat(0.23)},
	},
	Rental: {
		{year: 2015, rate: decimal.NewFromFloat(0.25)},
	},
	Capital: {
		{year: 2015, rate: decimal.NewFromFloat(0.28)},
	},
	Pension: {
		{year: 2015, rate: decimal.Zero},
	},
}

type rateEntry struct {
	year int
	rate decimal.Decimal
}

// StatutoryRate returns the nominal withholding rate for a category in a
// given year, as a fraction (0.23 for 23%).
func StatutoryRate(cat Category, year int) decimal.Decimal {
	entries, ok := statutoryRates[cat]
	if !ok || len(entries) == 0 {
		return decimal.Zero
	}
	rate := entries[0].rate
	for _, e := range entries {
		if year >= e.year {
			rate = e.rate
		}
	}
	return rate
}
