// Package export renders receivables reports as CSV or PDF documents.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
)

// Undefined is written in place of a metric whose denominator was zero.
const Undefined = "n/a"

// WriteReportCSV writes every section of report, separated by blank lines.
func WriteReportCSV(w io.Writer, report analytics.AnalyticsReport) error {
	sections := []func(*csv.Writer, analytics.AnalyticsReport) error{
		writeSummary,
		writeBuckets,
		writeTrend,
		writeSeasonality,
	}
	writer := csv.NewWriter(w)
	for i, section := range sections {
		if i > 0 {
			if err := writer.Write(nil); err != nil {
				return err
			}
		}
		if err := section(writer, report); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeSummary(writer *csv.Writer, r analytics.AnalyticsReport) error {
	customer := r.CustomerID
	if customer == analytics.AllCustomers {
		customer = "all"
	}
	records := [][]string{
		{"Metric", "Value"},
		{"Customer", customer},
		{"As Of", r.AsOf.String()},
		{"Overdue", FormatAmount(r.Totals.Overdue)},
		{"Not Yet Due", FormatAmount(r.Totals.NotDue)},
		{"Grand Total", FormatAmount(r.Totals.Grand)},
		{"Overdue %", FormatMetric(r.Totals.OverduePct)},
		{"Not Yet Due %", FormatMetric(r.Totals.NotDuePct)},
		{"Excluded Rows", strconv.Itoa(r.Excluded)},
		{"Billing Term (days)", FormatMetric(r.BillingTerm)},
		{"Collection Term (days)", FormatMetric(r.CollectionTerm)},
		{"Average Daily Revenue", FormatMetric(r.AverageDailyRevenue)},
		{"DSO (days)", FormatMetric(r.DSO)},
		{"CEI %", FormatMetric(r.CEI)},
		{"Turnover", FormatMetric(r.Turnover)},
		{"Credit Sales", FormatAmount(r.CreditSales)},
		{"Payments Received", FormatAmount(r.PaymentsReceived)},
		{"Revenue Tier", r.Tier.Label},
		{"Risk", string(r.Risk)},
		{"Balance", string(r.Balance)},
		{"Performance Variation %", FormatMetric(r.Performance.Variation)},
	}
	return writer.WriteAll(records)
}

func writeBuckets(writer *csv.Writer, r analytics.AnalyticsReport) error {
	if err := writer.Write([]string{"Bucket", "Count", "Amount"}); err != nil {
		return err
	}
	for _, bucket := range r.Buckets {
		if err := writer.Write([]string{bucket.Bucket, strconv.Itoa(bucket.Count), FormatAmount(bucket.Amount)}); err != nil {
			return err
		}
	}
	return nil
}

func writeTrend(writer *csv.Writer, r analytics.AnalyticsReport) error {
	if err := writer.Write([]string{"Period", "Amount", "Elapsed"}); err != nil {
		return err
	}
	for _, point := range r.Trend {
		elapsed := "false"
		if point.Elapsed {
			elapsed = "true"
		}
		if err := writer.Write([]string{point.Period, FormatAmount(point.Amount), elapsed}); err != nil {
			return err
		}
	}
	return nil
}

func writeSeasonality(writer *csv.Writer, r analytics.AnalyticsReport) error {
	if err := writer.Write([]string{"Month", "Credit Sales"}); err != nil {
		return err
	}
	for _, point := range r.Seasonality {
		if err := writer.Write([]string{point.Month, FormatAmount(point.Amount)}); err != nil {
			return err
		}
	}
	return nil
}

// FormatAmount renders v with two decimal places.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatMetric renders a defined metric with two decimals and Undefined otherwise.
func FormatMetric(m analytics.Metric) string {
	if !m.Defined {
		return Undefined
	}
	return FormatAmount(m.Value)
}
