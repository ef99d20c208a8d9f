package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// DatasetLoader supplies the raw ledgers.
type DatasetLoader interface {
	Load(ctx context.Context) (Dataset, error)
}

// Schemas names the layouts of both ledgers.
type Schemas struct {
	OpenItems      Schema
	Sales          Schema
	RequireHeaders bool
}

// DefaultSchemas are the full ledger exports.
var DefaultSchemas = Schemas{OpenItems: OpenItemsLedgerSchema, Sales: SalesLedgerSchema, RequireHeaders: true}

// Request scopes one analysis. CustomerKey, when set, takes precedence over
// CustomerID. A zero AsOf means today.
type Request struct {
	CustomerID  string
	CustomerKey CustomerKey
	AsOf        time.Time
}

// ServiceMetrics counts produced reports and undefined metrics.
type ServiceMetrics struct {
	reports    *prometheus.CounterVec
	degenerate *prometheus.CounterVec
}

// NewServiceMetrics registers the collectors against registerer.
func NewServiceMetrics(registerer prometheus.Registerer) *ServiceMetrics {
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_receivables_reports_total",
		Help: "Receivables reports assembled, by scope and risk grade.",
	}, []string{"scope", "risk"})
	degenerate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_receivables_degenerate_metrics_total",
		Help: "Metrics reported as undefined because a denominator was zero.",
	}, []string{"metric"})
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(reports, degenerate)
	return &ServiceMetrics{reports: reports, degenerate: degenerate}
}

func (m *ServiceMetrics) observe(r AnalyticsReport) {
	if m == nil {
		return
	}
	scope := "customer"
	if r.CustomerID == AllCustomers {
		scope = "all"
	}
	m.reports.WithLabelValues(scope, string(r.Risk)).Inc()
	for _, name := range r.Degenerate {
		m.degenerate.WithLabelValues(name).Inc()
	}
}

type normalized struct {
	fingerprint string
	openItems   []OpenItemRecord
	sales       []SalesRecord
}

// Service loads datasets, normalizes them once per fingerprint and runs the engine.
type Service struct {
	loader  DatasetLoader
	schemas Schemas
	engine  *Engine
	logger  *slog.Logger
	metrics *ServiceMetrics

	mu      sync.Mutex
	current *normalized
}

// NewService wires a loader with the ledger schemas.
func NewService(loader DatasetLoader, schemas Schemas, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{loader: loader, schemas: schemas, engine: NewEngine(), logger: logger}
}

// WithMetrics attaches Prometheus counters.
func (s *Service) WithMetrics(m *ServiceMetrics) *Service {
	s.metrics = m
	return s
}

// WithNow overrides the clock used for default analysis dates.
func (s *Service) WithNow(fn func() time.Time) *Service {
	s.engine.WithNow(fn)
	return s
}

// Analyze builds the report for req.
func (s *Service) Analyze(ctx context.Context, req Request) (AnalyticsReport, error) {
	data, err := s.records(ctx)
	if err != nil {
		return AnalyticsReport{}, err
	}
	sel := Selection{CustomerID: req.CustomerID}
	if strings.TrimSpace(string(req.CustomerKey)) != "" {
		id, err := ResolveCustomerKey(data.openItems, req.CustomerKey)
		if err != nil {
			return AnalyticsReport{}, err
		}
		sel.CustomerID = id
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.engine.clock()
	}
	return s.assemble(data, sel, asOf)
}

// CustomerReport is one row of a portfolio: a customer and its report.
type CustomerReport struct {
	Customer CustomerOption
	Report   AnalyticsReport
}

const portfolioWorkers = 8

// AnalyzeAll builds a report for every distinct customer identifier. All reports
// come from the same dataset snapshot, loaded once.
func (s *Service) AnalyzeAll(ctx context.Context, asOf time.Time) ([]CustomerReport, error) {
	data, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.engine.clock()
	}
	customers := distinctCustomers(CustomerOptions(data.openItems))
	out := make([]CustomerReport, len(customers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(portfolioWorkers)
	for i, c := range customers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := s.assemble(data, Selection{CustomerID: c.ID}, asOf)
			if err != nil {
				return fmt.Errorf("analytics: customer %s: %w", c.ID, err)
			}
			out[i] = CustomerReport{Customer: c, Report: report}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// distinctCustomers keeps the first option of every identifier; keys differ when
// one identifier is listed under several trade names.
func distinctCustomers(options []CustomerOption) []CustomerOption {
	seen := make(map[string]struct{}, len(options))
	out := make([]CustomerOption, 0, len(options))
	for _, o := range options {
		if _, ok := seen[o.ID]; ok {
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	return out
}

func (s *Service) assemble(data *normalized, sel Selection, asOf time.Time) (AnalyticsReport, error) {
	window, err := NewAnalysisWindow(data.openItems, data.sales, sel, asOf)
	if err != nil {
		return AnalyticsReport{}, err
	}
	report := Assemble(window)

	attrs := []any{
		slog.String("customer_id", report.CustomerID),
		slog.String("as_of", report.AsOf.String()),
		slog.String("risk", string(report.Risk)),
	}
	if report.Excluded > 0 {
		s.logger.Info("receivables without due date excluded from aging", append(attrs, slog.Int("excluded", report.Excluded))...)
	}
	if len(report.Degenerate) > 0 {
		s.logger.Debug("undefined metrics", append(attrs, slog.Any("metrics", report.Degenerate))...)
	}
	s.metrics.observe(report)
	return report, nil
}

// Customers lists the selectable customers of the receivables ledger.
func (s *Service) Customers(ctx context.Context) ([]CustomerOption, error) {
	data, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	return CustomerOptions(data.openItems), nil
}

// records returns the typed records of the current dataset, normalizing only
// when the fingerprint changed.
func (s *Service) records(ctx context.Context) (*normalized, error) {
	if s.loader == nil {
		return nil, errors.New("analytics: dataset loader not configured")
	}
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: load dataset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && ds.Fingerprint != "" && s.current.fingerprint == ds.Fingerprint {
		return s.current, nil
	}

	opts := NormalizeOptions{RequireHeaders: s.schemas.RequireHeaders}
	openTable, err := NormalizeWithOptions(ds.OpenItems, s.schemas.OpenItems, opts)
	if err != nil {
		return nil, err
	}
	salesTable, err := NormalizeWithOptions(ds.Sales, s.schemas.Sales, opts)
	if err != nil {
		return nil, err
	}
	items, err := OpenItems(openTable)
	if err != nil {
		return nil, err
	}
	sales, err := SalesRecords(salesTable)
	if err != nil {
		return nil, err
	}
	s.current = &normalized{fingerprint: ds.Fingerprint, openItems: items, sales: sales}
	s.logger.Debug("dataset normalized",
		slog.String("fingerprint", ds.Fingerprint),
		slog.Int("open_items", len(items)),
		slog.Int("sales", len(sales)),
	)
	return s.current, nil
}
