package analytics

import (
	"github.com/shopspring/decimal"
)

// divisionPrecision bounds the decimal places kept by ratio divisions.
const divisionPrecision = 12

var hundred = decimal.NewFromInt(100)

// observation is one term weighted by an amount.
type observation struct {
	value  float64
	weight float64
}

// weightedAverage computes Σ(value×weight)/Σ(weight). Sums are exact decimals so
// identical terms average back to the term itself.
func weightedAverage(obs []observation) Metric {
	num, den := decimal.Zero, decimal.Zero
	for _, o := range obs {
		w := decimal.NewFromFloat(o.weight)
		num = num.Add(decimal.NewFromFloat(o.value).Mul(w))
		den = den.Add(w)
	}
	return ratio(num, den)
}

func simpleAverage(values []float64) Metric {
	obs := make([]observation, len(values))
	for i, v := range values {
		obs[i] = observation{value: v, weight: 1}
	}
	return weightedAverage(obs)
}

// ratio divides num by den, undefined when den is zero.
func ratio(num, den decimal.Decimal) Metric {
	if den.IsZero() {
		return undefined
	}
	v, _ := num.DivRound(den, divisionPrecision).Float64()
	return defined(v)
}

func percent(part, whole decimal.Decimal) Metric {
	return ratio(part.Mul(hundred), whole)
}

func toFloat(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

func decimalSum(values ...Amount) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		if v.Valid {
			total = total.Add(decimal.NewFromFloat(v.Value))
		}
	}
	return total
}

func openItemTotal(items []OpenItemRecord) decimal.Decimal {
	amounts := make([]Amount, len(items))
	for i, item := range items {
		amounts[i] = item.NetAmount
	}
	return decimalSum(amounts...)
}

func creditSalesTotal(sales []SalesRecord) decimal.Decimal {
	amounts := make([]Amount, len(sales))
	for i, sale := range sales {
		amounts[i] = sale.NetAmount
	}
	return decimalSum(amounts...)
}

func paymentsTotal(sales []SalesRecord) decimal.Decimal {
	amounts := make([]Amount, len(sales))
	for i, sale := range sales {
		amounts[i] = sale.PaymentAmount
	}
	return decimalSum(amounts...)
}

// Totals are the aging sums and shares.
type Totals struct {
	Overdue      float64 `json:"overdue"`
	NotDue       float64 `json:"not_due"`
	Grand        float64 `json:"grand"`
	OverdueCount int     `json:"overdue_count"`
	NotDueCount  int     `json:"not_due_count"`
	OverduePct   Metric  `json:"overdue_pct"`
	NotDuePct    Metric  `json:"not_due_pct"`
}

// ComputeTotals sums both aging partitions. Shares are undefined when the grand
// total is zero.
func ComputeTotals(a Aging) Totals {
	overdue := openItemTotal(a.Overdue)
	notDue := openItemTotal(a.NotDue)
	grand := overdue.Add(notDue)
	return Totals{
		Overdue:      toFloat(overdue),
		NotDue:       toFloat(notDue),
		Grand:        toFloat(grand),
		OverdueCount: len(a.Overdue),
		NotDueCount:  len(a.NotDue),
		OverduePct:   percent(overdue, grand),
		NotDuePct:    percent(notDue, grand),
	}
}

// WeightedBillingTerm is the amount-weighted mean of due − issue days over rows
// carrying both dates and an amount.
func WeightedBillingTerm(items []OpenItemRecord) Metric {
	obs := make([]observation, 0, len(items))
	for _, item := range items {
		if !item.IssueDate.Valid || !item.DueDate.Valid || !item.NetAmount.Valid {
			continue
		}
		obs = append(obs, observation{value: item.DueDate.DaysSince(item.IssueDate), weight: item.NetAmount.Value})
	}
	return weightedAverage(obs)
}

// WeightedCollectionTerm is the amount-weighted mean of payment − due days. Unpaid
// sales are left out of both sums.
func WeightedCollectionTerm(sales []SalesRecord) Metric {
	obs := make([]observation, 0, len(sales))
	for _, sale := range sales {
		if !sale.PaymentDate.Valid || !sale.DueDate.Valid || !sale.NetAmount.Valid {
			continue
		}
		obs = append(obs, observation{value: sale.PaymentDate.DaysSince(sale.DueDate), weight: sale.NetAmount.Value})
	}
	return weightedAverage(obs)
}

// SimpleBillingTerm is the unweighted mean of due − issue days.
func SimpleBillingTerm(items []OpenItemRecord) Metric {
	values := make([]float64, 0, len(items))
	for _, item := range items {
		if item.IssueDate.Valid && item.DueDate.Valid {
			values = append(values, item.DueDate.DaysSince(item.IssueDate))
		}
	}
	return simpleAverage(values)
}

// SimpleCollectionTerm is the unweighted mean of payment − due days.
func SimpleCollectionTerm(sales []SalesRecord) Metric {
	values := make([]float64, 0, len(sales))
	for _, sale := range sales {
		if sale.PaymentDate.Valid && sale.DueDate.Valid {
			values = append(values, sale.PaymentDate.DaysSince(sale.DueDate))
		}
	}
	return simpleAverage(values)
}

// AverageDailyRevenue divides total credit sales by the issue-date span in days.
func AverageDailyRevenue(sales []SalesRecord) Metric {
	var first, last Date
	for _, sale := range sales {
		if !sale.IssueDate.Valid {
			continue
		}
		if !first.Valid || sale.IssueDate.Before(first) {
			first = sale.IssueDate
		}
		if !last.Valid || last.Before(sale.IssueDate) {
			last = sale.IssueDate
		}
	}
	if !first.Valid {
		return undefined
	}
	span := decimal.NewFromFloat(last.DaysSince(first))
	return ratio(creditSalesTotal(sales), span)
}

// DaysSalesOutstanding divides the receivables total by average daily revenue.
func DaysSalesOutstanding(grand float64, adr Metric) Metric {
	if !adr.Defined || adr.Value == 0 {
		return undefined
	}
	return ratio(decimal.NewFromFloat(grand), decimal.NewFromFloat(adr.Value))
}

// CollectionEffectiveness is payments received over credit sales, in percent.
func CollectionEffectiveness(sales []SalesRecord) Metric {
	return percent(paymentsTotal(sales), creditSalesTotal(sales))
}

// Turnover is credit sales over the receivables total.
func Turnover(sales []SalesRecord, grand float64) Metric {
	return ratio(creditSalesTotal(sales), decimal.NewFromFloat(grand))
}
