package analytics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Risk grades the overdue share of a customer.
type Risk string

const (
	RiskHealthy  Risk = "healthy"
	RiskElevated Risk = "elevated"
	RiskCritical Risk = "critical"
)

// ClassifyRisk applies the fixed thresholds: above 20% critical, above 10% elevated.
func ClassifyRisk(overduePct Metric) Risk {
	switch {
	case overduePct.Value > 20:
		return RiskCritical
	case overduePct.Value > 10:
		return RiskElevated
	default:
		return RiskHealthy
	}
}

// Balance compares the overdue and not-yet-due totals.
type Balance string

const (
	BalanceOverdueExceeds Balance = "overdue_exceeds"
	BalanceNotDueExceeds  Balance = "not_due_exceeds"
	BalanceEven           Balance = "balanced"
)

func compareBalance(t Totals) Balance {
	switch {
	case t.Overdue > t.NotDue:
		return BalanceOverdueExceeds
	case t.Overdue < t.NotDue:
		return BalanceNotDueExceeds
	default:
		return BalanceEven
	}
}

// performanceLookback is how far before the latest issue date prior sales end.
const performanceLookback = 6

// Performance compares the open receivables with credit sales issued before the
// lookback cutoff.
type Performance struct {
	PeriodStart Date    `json:"period_start"`
	PeriodEnd   Date    `json:"period_end"`
	Cutoff      Date    `json:"cutoff"`
	Current     float64 `json:"current"`
	Prior       float64 `json:"prior"`
	Variation   Metric  `json:"variation_pct"`
}

// ComparePerformance computes the current-versus-prior variation. Variation is
// undefined without issue dates or when the prior amount is not positive.
func ComparePerformance(items []OpenItemRecord, sales []SalesRecord) Performance {
	current := openItemTotal(items)
	perf := Performance{Current: toFloat(current)}
	for _, item := range items {
		if !item.IssueDate.Valid {
			continue
		}
		if !perf.PeriodStart.Valid || item.IssueDate.Before(perf.PeriodStart) {
			perf.PeriodStart = item.IssueDate
		}
		if !perf.PeriodEnd.Valid || perf.PeriodEnd.Before(item.IssueDate) {
			perf.PeriodEnd = item.IssueDate
		}
	}
	if !perf.PeriodEnd.Valid {
		return perf
	}
	perf.Cutoff = NewDate(perf.PeriodEnd.Time.AddDate(0, -performanceLookback, 0))

	prior := decimal.Zero
	for _, sale := range sales {
		if sale.IssueDate.Valid && sale.IssueDate.Before(perf.Cutoff) {
			prior = prior.Add(decimalSum(sale.NetAmount))
		}
	}
	perf.Prior = toFloat(prior)
	if prior.IsPositive() {
		perf.Variation = percent(current.Sub(prior), prior)
	}
	return perf
}

// AnalysisWindow is the immutable input of one analysis: the analysis date and the
// filtered records of one customer or of all customers.
type AnalysisWindow struct {
	selection Selection
	asOf      Date
	openItems []OpenItemRecord
	sales     []SalesRecord
}

// NewAnalysisWindow filters both ledgers for sel. The window keeps its own copies.
func NewAnalysisWindow(openItems []OpenItemRecord, sales []SalesRecord, sel Selection, asOf time.Time) (AnalysisWindow, error) {
	items, err := FilterOpenItems(openItems, sel)
	if err != nil {
		return AnalysisWindow{}, err
	}
	return AnalysisWindow{
		selection: sel,
		asOf:      NewDate(asOf),
		openItems: slices.Clone(items),
		sales:     slices.Clone(FilterSales(sales, sel)),
	}, nil
}

// Selection returns the customer scope.
func (w AnalysisWindow) Selection() Selection { return w.selection }

// AsOf returns the analysis date.
func (w AnalysisWindow) AsOf() Date { return w.asOf }

// OpenItems returns a copy of the filtered receivables.
func (w AnalysisWindow) OpenItems() []OpenItemRecord { return slices.Clone(w.openItems) }

// Sales returns a copy of the filtered sales.
func (w AnalysisWindow) Sales() []SalesRecord { return slices.Clone(w.sales) }

// AnalyticsReport is the result of one analysis. It is never updated.
type AnalyticsReport struct {
	CustomerID           string        `json:"customer_id"`
	AsOf                 Date          `json:"as_of"`
	Totals               Totals        `json:"totals"`
	Buckets              []AgingBucket `json:"buckets"`
	Excluded             int           `json:"excluded"`
	BillingTerm          Metric        `json:"billing_term"`
	CollectionTerm       Metric        `json:"collection_term"`
	SimpleBillingTerm    Metric        `json:"simple_billing_term"`
	SimpleCollectionTerm Metric        `json:"simple_collection_term"`
	AverageDailyRevenue  Metric        `json:"average_daily_revenue"`
	DSO                  Metric        `json:"dso"`
	CEI                  Metric        `json:"cei"`
	Turnover             Metric        `json:"turnover"`
	CreditSales          float64       `json:"credit_sales"`
	PaymentsReceived     float64       `json:"payments_received"`
	Tier                 RevenueTier   `json:"tier"`
	Trend                []TrendPoint  `json:"trend"`
	Seasonality          []SeasonPoint `json:"seasonality"`
	Risk                 Risk          `json:"risk"`
	Balance              Balance       `json:"balance"`
	Performance          Performance   `json:"performance"`
	Degenerate           []string      `json:"degenerate"`
}

// Assemble runs aging, metrics and bucketing over the window.
func Assemble(w AnalysisWindow) AnalyticsReport {
	aging := Classify(w.openItems, w.asOf)
	totals := ComputeTotals(aging)
	adr := AverageDailyRevenue(w.sales)

	report := AnalyticsReport{
		CustomerID:           w.selection.id(),
		AsOf:                 w.asOf,
		Totals:               totals,
		Buckets:              aging.Buckets(),
		Excluded:             aging.Excluded,
		BillingTerm:          WeightedBillingTerm(w.openItems),
		CollectionTerm:       WeightedCollectionTerm(w.sales),
		SimpleBillingTerm:    SimpleBillingTerm(w.openItems),
		SimpleCollectionTerm: SimpleCollectionTerm(w.sales),
		AverageDailyRevenue:  adr,
		DSO:                  DaysSalesOutstanding(totals.Grand, adr),
		CEI:                  CollectionEffectiveness(w.sales),
		Turnover:             Turnover(w.sales, totals.Grand),
		CreditSales:          toFloat(creditSalesTotal(w.sales)),
		PaymentsReceived:     toFloat(paymentsTotal(w.sales)),
		Tier:                 TierFor(totals.Grand),
		Trend:                MonthlyTrend(w.openItems, w.asOf),
		Seasonality:          Seasonality(w.sales),
		Risk:                 ClassifyRisk(totals.OverduePct),
		Balance:              compareBalance(totals),
		Performance:          ComparePerformance(w.openItems, w.sales),
	}
	report.Degenerate = degenerateMetrics(report)
	return report
}

func degenerateMetrics(r AnalyticsReport) []string {
	named := []struct {
		name   string
		metric Metric
	}{
		{"overdue_pct", r.Totals.OverduePct},
		{"not_due_pct", r.Totals.NotDuePct},
		{"billing_term", r.BillingTerm},
		{"collection_term", r.CollectionTerm},
		{"simple_billing_term", r.SimpleBillingTerm},
		{"simple_collection_term", r.SimpleCollectionTerm},
		{"average_daily_revenue", r.AverageDailyRevenue},
		{"dso", r.DSO},
		{"cei", r.CEI},
		{"turnover", r.Turnover},
		{"performance_variation", r.Performance.Variation},
	}
	out := make([]string, 0)
	for _, n := range named {
		if !n.metric.Defined {
			out = append(out, n.name)
		}
	}
	return out
}

// Engine turns normalized tables and a selection into a report.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs an Engine using the wall clock for default analysis dates.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// WithNow overrides the engine clock for testing.
func (e *Engine) WithNow(fn func() time.Time) {
	if fn != nil {
		e.now = fn
	}
}

// Window extracts records from both tables and builds the analysis window. A zero
// asOf means today.
func (e *Engine) Window(openItems, sales *Table, sel Selection, asOf time.Time) (AnalysisWindow, error) {
	items, err := OpenItems(openItems)
	if err != nil {
		return AnalysisWindow{}, err
	}
	salesRecords, err := SalesRecords(sales)
	if err != nil {
		return AnalysisWindow{}, err
	}
	if asOf.IsZero() {
		asOf = e.clock()
	}
	return NewAnalysisWindow(items, salesRecords, sel, asOf)
}

// Run builds the window and assembles the report.
func (e *Engine) Run(openItems, sales *Table, sel Selection, asOf time.Time) (AnalyticsReport, error) {
	window, err := e.Window(openItems, sales, sel, asOf)
	if err != nil {
		return AnalyticsReport{}, err
	}
	return Assemble(window), nil
}

func (e *Engine) clock() time.Time {
	if e == nil || e.now == nil {
		return time.Now()
	}
	return e.now()
}
