package analytics

import (
	"errors"
	"math"
	"testing"
	"time"
)

var today = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func day(offset int) Date {
	return NewDate(today.AddDate(0, 0, offset))
}

func openItem(customer string, issue, due Date, amount float64) OpenItemRecord {
	return OpenItemRecord{CustomerID: customer, CustomerName: "Customer " + customer, IssueDate: issue, DueDate: due, NetAmount: NewAmount(amount)}
}

func sale(customer string, issue, due, paid Date, amount, payment float64) SalesRecord {
	rec := SalesRecord{CustomerID: customer, IssueDate: issue, DueDate: due, PaymentDate: paid, NetAmount: NewAmount(amount)}
	if paid.Valid {
		rec.PaymentAmount = NewAmount(payment)
	}
	return rec
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClassifyScenario(t *testing.T) {
	items := []OpenItemRecord{
		openItem("1", day(-40), day(-5), 1000),
		openItem("1", day(-20), day(10), 2000),
	}
	aging := Classify(items, day(0))
	totals := ComputeTotals(aging)
	if totals.Overdue != 1000 || totals.NotDue != 2000 || totals.Grand != 3000 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if !almostEqual(totals.OverduePct.Value, 100.0/3) || !almostEqual(totals.NotDuePct.Value, 200.0/3) {
		t.Fatalf("unexpected shares %+v %+v", totals.OverduePct, totals.NotDuePct)
	}
	if !almostEqual(totals.OverduePct.Value+totals.NotDuePct.Value, 100) {
		t.Fatalf("shares must sum to 100")
	}
	if len(items) != 2 || items[0].NetAmount.Value != 1000 {
		t.Fatalf("input mutated")
	}
}

func TestClassifyBoundaryAndMissingDueDate(t *testing.T) {
	items := []OpenItemRecord{
		openItem("1", day(-3), day(0), 10),
		openItem("1", day(-3), Date{}, 99),
		openItem("1", day(-3), day(-1), 5),
	}
	aging := Classify(items, day(0))
	if len(aging.NotDue) != 1 || aging.NotDue[0].NetAmount.Value != 10 {
		t.Fatalf("due today must be not yet due: %+v", aging.NotDue)
	}
	if len(aging.Overdue) != 1 || aging.Excluded != 1 {
		t.Fatalf("unexpected partitions %+v", aging)
	}
	buckets := aging.Buckets()
	if buckets[0].Bucket != BucketOverdue || buckets[0].Amount != 5 || buckets[1].Count != 1 {
		t.Fatalf("unexpected buckets %+v", buckets)
	}
	if ComputeTotals(aging).Grand != 15 {
		t.Fatalf("excluded rows must not reach totals")
	}
}

func TestZeroGrandTotalIsDegenerate(t *testing.T) {
	totals := ComputeTotals(Classify(nil, day(0)))
	if totals.OverduePct.Defined || totals.NotDuePct.Defined || totals.OverduePct.Value != 0 || totals.NotDuePct.Value != 0 {
		t.Fatalf("expected undefined zero shares, got %+v", totals)
	}
	if m := DaysSalesOutstanding(0, AverageDailyRevenue(nil)); m.Defined || m.Value != 0 {
		t.Fatalf("expected undefined DSO, got %+v", m)
	}
	if m := CollectionEffectiveness(nil); m.Defined || m.Value != 0 {
		t.Fatalf("expected undefined CEI, got %+v", m)
	}
	if m := Turnover([]SalesRecord{sale("1", day(-1), day(1), Date{}, 100, 0)}, 0); m.Defined || m.Value != 0 {
		t.Fatalf("expected undefined turnover, got %+v", m)
	}
}

func TestWeightedAverageOfIdenticalTermsIsExact(t *testing.T) {
	for _, term := range []int{1, 7, 30, 33, 45, 91} {
		for _, weight := range []float64{0.1, 1, 333.33, 1234.57} {
			items := make([]OpenItemRecord, 0, 7)
			sales := make([]SalesRecord, 0, 7)
			for i := 0; i < 7; i++ {
				issue := day(-i * 3)
				due := NewDate(issue.Time.AddDate(0, 0, term))
				items = append(items, openItem("1", issue, due, weight))
				sales = append(sales, sale("1", issue, issue, due, weight, weight))
			}
			if got := WeightedBillingTerm(items); !got.Defined || got.Value != float64(term) {
				t.Fatalf("billing term for t=%d w=%v: %+v", term, weight, got)
			}
			if got := WeightedCollectionTerm(sales); !got.Defined || got.Value != float64(term) {
				t.Fatalf("collection term for t=%d w=%v: %+v", term, weight, got)
			}
		}
	}
}

func TestWeightedBillingTermWeightsByAmount(t *testing.T) {
	items := []OpenItemRecord{
		openItem("1", day(0), day(10), 100),
		openItem("1", day(0), day(40), 300),
		openItem("1", Date{}, day(90), 1000),
		{CustomerID: "1", IssueDate: day(0), DueDate: day(90)},
	}
	got := WeightedBillingTerm(items)
	if !got.Defined || got.Value != 32.5 {
		t.Fatalf("expected 32.5, got %+v", got)
	}
	simple := SimpleBillingTerm(items)
	if !simple.Defined || !almostEqual(simple.Value, 140.0/3) {
		t.Fatalf("unexpected simple term %+v", simple)
	}
}

func TestDaysSinceSpansCenturies(t *testing.T) {
	issue := ParseDate("0024-01-01")
	due := ParseDate("2024-01-31")
	if !issue.Valid || !due.Valid {
		t.Fatalf("expected both dates to parse: %+v %+v", issue, due)
	}
	if got := due.DaysSince(issue); got != 730515 {
		t.Fatalf("expected 730515 days, got %v", got)
	}
	if got := issue.DaysSince(due); got != -730515 {
		t.Fatalf("expected -730515 days, got %v", got)
	}
	term := WeightedBillingTerm([]OpenItemRecord{openItem("1", issue, due, 100)})
	if !term.Defined || term.Value != 730515 {
		t.Fatalf("unexpected billing term %+v", term)
	}
}

func TestWeightedCollectionTermSkipsUnpaid(t *testing.T) {
	sales := []SalesRecord{
		sale("1", day(-30), day(-10), day(-5), 200, 200),
		sale("1", day(-30), day(-10), Date{}, 10000, 0),
	}
	got := WeightedCollectionTerm(sales)
	if !got.Defined || got.Value != 5 {
		t.Fatalf("expected 5, got %+v", got)
	}
	if m := WeightedCollectionTerm(sales[1:]); m.Defined {
		t.Fatalf("expected undefined when nothing paid, got %+v", m)
	}
}

func TestAverageDailyRevenueAndDSO(t *testing.T) {
	sales := []SalesRecord{
		sale("1", day(-10), day(0), Date{}, 600, 0),
		sale("1", day(-4), day(0), Date{}, 400, 0),
		sale("1", day(0), day(0), Date{}, 1000, 0),
	}
	adr := AverageDailyRevenue(sales)
	if !adr.Defined || adr.Value != 200 {
		t.Fatalf("expected ADR 200, got %+v", adr)
	}
	dso := DaysSalesOutstanding(3000, adr)
	if !dso.Defined || dso.Value != 15 {
		t.Fatalf("expected DSO 15, got %+v", dso)
	}
}

func TestSingleDaySpanIsDegenerate(t *testing.T) {
	sales := []SalesRecord{
		sale("1", day(-2), day(0), Date{}, 600, 0),
		sale("1", day(-2), day(5), Date{}, 400, 0),
	}
	adr := AverageDailyRevenue(sales)
	if adr.Defined || adr.Value != 0 {
		t.Fatalf("expected undefined ADR, got %+v", adr)
	}
	if dso := DaysSalesOutstanding(5000, adr); dso.Defined || dso.Value != 0 {
		t.Fatalf("expected undefined DSO, got %+v", dso)
	}
}

func TestCollectionEffectivenessAndTurnover(t *testing.T) {
	sales := []SalesRecord{
		sale("1", day(-60), day(-30), day(-25), 1000, 800),
		sale("1", day(-30), day(0), Date{}, 1000, 0),
	}
	cei := CollectionEffectiveness(sales)
	if !cei.Defined || cei.Value != 40 {
		t.Fatalf("expected CEI 40, got %+v", cei)
	}
	turnover := Turnover(sales, 500)
	if !turnover.Defined || turnover.Value != 4 {
		t.Fatalf("expected turnover 4, got %+v", turnover)
	}
}

func TestFilterOpenItems(t *testing.T) {
	items := []OpenItemRecord{
		openItem("1", day(0), day(1), 1),
		openItem("2", day(0), day(1), 2),
		openItem("1", day(0), day(1), 3),
	}
	got, err := FilterOpenItems(items, Selection{CustomerID: " 1 "})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(got) != 2 || got[0].NetAmount.Value != 1 || got[1].NetAmount.Value != 3 {
		t.Fatalf("expected order-preserving subset, got %+v", got)
	}
	all, err := FilterOpenItems(items, Selection{CustomerID: AllCustomers})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all rows, got %d (%v)", len(all), err)
	}
	if _, err := FilterOpenItems(items, Selection{CustomerID: "9"}); !errors.Is(err, ErrNoMatchingCustomer) {
		t.Fatalf("expected no matching customer, got %v", err)
	}
	if sales := FilterSales(nil, Selection{CustomerID: "9"}); len(sales) != 0 {
		t.Fatalf("expected empty sales subset")
	}
}

func TestCustomerOptionsAndKeys(t *testing.T) {
	items := []OpenItemRecord{
		openItem("2", day(0), day(1), 1),
		openItem("1", day(0), day(1), 2),
		openItem("2", day(0), day(1), 3),
	}
	options := CustomerOptions(items)
	if len(options) != 2 || options[0].Key != "2 - Customer 2" {
		t.Fatalf("unexpected options %+v", options)
	}
	id, err := ResolveCustomerKey(items, "1 - Customer 1")
	if err != nil || id != "1" {
		t.Fatalf("resolve: %q %v", id, err)
	}
	if _, err := ResolveCustomerKey(items, "3 - Nobody"); !errors.Is(err, ErrNoMatchingCustomer) {
		t.Fatalf("expected no matching customer, got %v", err)
	}
}
