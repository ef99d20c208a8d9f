package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	dataset Dataset
	err     error
	calls   int
}

func (s *stubLoader) Load(ctx context.Context) (Dataset, error) {
	s.calls++
	return s.dataset, s.err
}

var compactSchemas = Schemas{OpenItems: OpenItemsCompactSchema, Sales: SalesCompactSchema}

func sampleDataset() Dataset {
	return Dataset{
		Fingerprint: "fp-1",
		OpenItems: RawTable{
			Header: OpenItemsCompactSchema.Labels(),
			Rows: [][]string{
				{"10", "ACME", "2024-05-01", "2024-06-10", "1000", "", ""},
				{"10", "ACME", "2024-05-20", "2024-06-25", "2000", "", ""},
				{"20", "Beta", "2024-04-01", "", "300", "", ""},
			},
		},
		Sales: RawTable{
			Header: SalesCompactSchema.Labels(),
			Rows: [][]string{
				{"10", "2024-02-01", "2024-03-01", "3000", "2024-03-05", "3000"},
			},
		},
	}
}

func newTestService(loader DatasetLoader) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(loader, compactSchemas, logger).
		WithNow(func() time.Time { return today })
}

func TestServiceAnalyzeByKey(t *testing.T) {
	loader := &stubLoader{dataset: sampleDataset()}
	svc := newTestService(loader)

	report, err := svc.Analyze(context.Background(), Request{CustomerKey: "10 - ACME"})
	require.NoError(t, err)
	require.Equal(t, "10", report.CustomerID)
	require.Equal(t, "2024-06-15", report.AsOf.String())
	require.Equal(t, 3000.0, report.Totals.Grand)
	require.True(t, report.CollectionTerm.Defined)
	require.Equal(t, 4.0, report.CollectionTerm.Value)
}

func TestServiceNormalizesOncePerFingerprint(t *testing.T) {
	loader := &stubLoader{dataset: sampleDataset()}
	svc := newTestService(loader)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, Request{})
	require.NoError(t, err)
	first := svc.current

	_, err = svc.Customers(ctx)
	require.NoError(t, err)
	require.Same(t, first, svc.current)

	loader.dataset.Fingerprint = "fp-2"
	_, err = svc.Customers(ctx)
	require.NoError(t, err)
	require.NotSame(t, first, svc.current)
	require.Equal(t, 3, loader.calls)
}

func TestServiceCustomers(t *testing.T) {
	svc := newTestService(&stubLoader{dataset: sampleDataset()})
	options, err := svc.Customers(context.Background())
	require.NoError(t, err)
	require.Len(t, options, 2)
	require.Equal(t, CustomerKey("20 - Beta"), options[1].Key)
}

func TestServiceErrors(t *testing.T) {
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := newTestService(&stubLoader{err: boom}).Analyze(ctx, Request{})
	require.ErrorIs(t, err, boom)

	_, err = newTestService(&stubLoader{dataset: sampleDataset()}).Analyze(ctx, Request{CustomerID: "404"})
	require.ErrorIs(t, err, ErrNoMatchingCustomer)

	broken := sampleDataset()
	broken.Sales.Header = []string{"only"}
	_, err = newTestService(&stubLoader{dataset: broken}).Analyze(ctx, Request{})
	require.ErrorIs(t, err, ErrSchemaMismatch)

	empty := sampleDataset()
	empty.Sales.Rows = nil
	_, err = newTestService(&stubLoader{dataset: empty}).Analyze(ctx, Request{})
	require.ErrorIs(t, err, ErrEmptyTable)
}

func TestServiceMetricsCountReports(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewServiceMetrics(registry)
	svc := newTestService(&stubLoader{dataset: sampleDataset()}).WithMetrics(metrics)

	dataset := sampleDataset()
	dataset.Sales.Rows = [][]string{{"10", "2024-02-01", "2024-03-01", "3000", "", ""}}
	svc.loader = &stubLoader{dataset: dataset}

	_, err := svc.Analyze(context.Background(), Request{CustomerID: "10"})
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.reports.WithLabelValues("customer", string(RiskCritical))))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.degenerate.WithLabelValues("collection_term")))
}

func TestServiceAnalyzeAllUsesOneSnapshot(t *testing.T) {
	loader := &stubLoader{dataset: sampleDataset()}
	svc := newTestService(loader)

	reports, err := svc.AnalyzeAll(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, loader.calls)
	require.Len(t, reports, 2)

	require.Equal(t, "10", reports[0].Customer.ID)
	require.Equal(t, "10", reports[0].Report.CustomerID)
	require.Equal(t, 3000.0, reports[0].Report.Totals.Grand)
	require.Equal(t, "2024-06-15", reports[0].Report.AsOf.String())

	require.Equal(t, "20", reports[1].Customer.ID)
	require.Equal(t, 1, reports[1].Report.Excluded)
	require.False(t, reports[1].Report.Totals.OverduePct.Defined)
}

func TestServiceAnalyzeAllKeepsFirstNamePerID(t *testing.T) {
	dataset := sampleDataset()
	dataset.OpenItems.Rows = append(dataset.OpenItems.Rows, []string{"10", "ACME Intl", "2024-05-02", "2024-06-11", "50", "", ""})
	svc := newTestService(&stubLoader{dataset: dataset})

	reports, err := svc.AnalyzeAll(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, "ACME", reports[0].Customer.Name)
	require.Equal(t, 3050.0, reports[0].Report.Totals.Grand)
}

func TestServiceAnalyzeAllPropagatesLoadErrors(t *testing.T) {
	boom := errors.New("source offline")
	_, err := newTestService(&stubLoader{err: boom}).AnalyzeAll(context.Background(), today)
	require.ErrorIs(t, err, boom)
}
