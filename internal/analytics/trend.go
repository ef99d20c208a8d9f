package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const periodLayout = "2006-01"

// RevenueTier is one bracket of the outstanding-total ruler. Upper is inclusive.
type RevenueTier struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Upper float64 `json:"-"`
}

// RevenueTiers are ordered by Upper; the last bracket is unbounded.
var RevenueTiers = []RevenueTier{
	{Index: 0, Label: "≤10k", Upper: 10000},
	{Index: 1, Label: "11k–50k", Upper: 50000},
	{Index: 2, Label: "51k–100k", Upper: 100000},
	{Index: 3, Label: "101k–150k", Upper: 150000},
	{Index: 4, Label: "151k–350k", Upper: 350000},
	{Index: 5, Label: "351k–1M", Upper: 1000000},
	{Index: 6, Label: ">1M", Upper: math.Inf(1)},
}

// TierFor returns the first bracket whose inclusive upper bound holds total.
func TierFor(total float64) RevenueTier {
	for _, tier := range RevenueTiers {
		if total <= tier.Upper {
			return tier
		}
	}
	return RevenueTiers[len(RevenueTiers)-1]
}

// TrendPoint is the receivables amount due in one calendar month.
type TrendPoint struct {
	Period  string  `json:"period"`
	Amount  float64 `json:"amount"`
	Elapsed bool    `json:"elapsed"`
}

// MonthlyTrend sums receivables by due-date month, oldest first. Only months with
// records appear. Elapsed marks months before the month of asOf.
func MonthlyTrend(items []OpenItemRecord, asOf Date) []TrendPoint {
	sums := make(map[string]decimal.Decimal)
	for _, item := range items {
		if !item.DueDate.Valid {
			continue
		}
		period := item.DueDate.Time.Format(periodLayout)
		sum, ok := sums[period]
		if !ok {
			sum = decimal.Zero
		}
		sums[period] = sum.Add(decimalSum(item.NetAmount))
	}

	periods := make([]string, 0, len(sums))
	for period := range sums {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	current := ""
	if asOf.Valid {
		current = asOf.Time.Format(periodLayout)
	}
	points := make([]TrendPoint, 0, len(periods))
	for _, period := range periods {
		points = append(points, TrendPoint{
			Period:  period,
			Amount:  toFloat(sums[period]),
			Elapsed: current != "" && period < current,
		})
	}
	return points
}

// SeasonPoint is the credit-sales amount issued in one calendar month name.
type SeasonPoint struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// Seasonality sums sales by issue-date month, ignoring the year. The result always
// holds twelve entries, January first; undated sales are skipped.
func Seasonality(sales []SalesRecord) []SeasonPoint {
	var sums [12]decimal.Decimal
	for i := range sums {
		sums[i] = decimal.Zero
	}
	for _, sale := range sales {
		if !sale.IssueDate.Valid {
			continue
		}
		m := sale.IssueDate.Time.Month() - time.January
		sums[m] = sums[m].Add(decimalSum(sale.NetAmount))
	}
	points := make([]SeasonPoint, 12)
	for i := range points {
		points[i] = SeasonPoint{Month: (time.January + time.Month(i)).String(), Amount: toFloat(sums[i])}
	}
	return points
}
