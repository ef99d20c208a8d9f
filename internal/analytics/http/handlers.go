package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
	"github.com/odyssey-erp/odyssey-receivables/internal/analytics/export"
	"github.com/odyssey-erp/odyssey-receivables/internal/analytics/svg"
	"github.com/odyssey-erp/odyssey-receivables/internal/platform/httpx"
)

const (
	requestTimeout = 10 * time.Second
	dayLayout      = "2006-01-02"
)

// ReportService is the analytics contract used by the handler.
type ReportService interface {
	Analyze(ctx context.Context, req analytics.Request) (analytics.AnalyticsReport, error)
	Customers(ctx context.Context) ([]analytics.CustomerOption, error)
	AnalyzeAll(ctx context.Context, asOf time.Time) ([]analytics.CustomerReport, error)
}

// RefreshRequester schedules a dataset refresh and returns the task identifier.
type RefreshRequester interface {
	RequestRefresh(ctx context.Context) (string, error)
}

// PDFService renders a report to PDF bytes.
type PDFService interface {
	RenderReport(ctx context.Context, payload export.ReportPayload) ([]byte, error)
}

// Handler serves receivables reports, exports and charts.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	refresher RefreshRequester
	pdf       PDFService
	validate  *validator.Validate
	csvPool   sync.Pool
	rateLimit int
	now       func() time.Time
}

// NewHandler constructs the receivables HTTP handler. refresher and pdf may be nil.
func NewHandler(logger *slog.Logger, service ReportService, refresher RefreshRequester, pdf PDFService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		refresher: refresher,
		pdf:       pdf,
		validate:  newValidator(),
		rateLimit: 10,
		now:       time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithRateLimit sets the per-minute budget of export and refresh endpoints.
func (h *Handler) WithRateLimit(perMinute int) {
	if perMinute > 0 {
		h.rateLimit = perMinute
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("printable", printable)
	return v
}

// printable accepts any printable unicode text; ledger identifiers carry accents.
func printable(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if !utf8.ValidString(value) {
		return false
	}
	return strings.IndexFunc(value, func(r rune) bool { return !unicode.IsPrint(r) }) < 0
}

type reportQuery struct {
	CustomerID  string `validate:"omitempty,max=64,printable"`
	CustomerKey string `validate:"omitempty,max=256"`
	AsOf        string `validate:"omitempty,datetime=2006-01-02"`
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}

var queryFields = map[string]string{
	"CustomerID":  "customer_id",
	"CustomerKey": "customer",
	"AsOf":        "as_of",
}

func (h *Handler) parseRequest(r *http.Request) (analytics.Request, error) {
	values := r.URL.Query()
	q := reportQuery{
		CustomerID:  strings.TrimSpace(values.Get("customer_id")),
		CustomerKey: strings.TrimSpace(values.Get("customer")),
		AsOf:        strings.TrimSpace(values.Get("as_of")),
	}
	if err := h.validate.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return analytics.Request{}, validationError{field: queryFields[fieldErrs[0].StructField()]}
		}
		return analytics.Request{}, err
	}

	req := analytics.Request{CustomerID: q.CustomerID, CustomerKey: analytics.CustomerKey(q.CustomerKey)}
	if q.AsOf != "" {
		asOf, err := time.Parse(dayLayout, q.AsOf)
		if err != nil {
			return analytics.Request{}, validationError{field: "as_of"}
		}
		req.AsOf = asOf
	} else {
		req.AsOf = h.now().UTC()
	}
	return req, nil
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) (analytics.AnalyticsReport, bool) {
	req, err := h.parseRequest(r)
	if err != nil {
		h.respondError(w, "parse query", err)
		return analytics.AnalyticsReport{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.Analyze(ctx, req)
	if err != nil {
		h.respondError(w, "analyze", err)
		return analytics.AnalyticsReport{}, false
	}
	return report, true
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.analyze(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	options, err := h.service.Customers(ctx)
	if err != nil {
		h.respondError(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": options})
}

// PortfolioEntry summarises one customer of the portfolio view.
type PortfolioEntry struct {
	CustomerID string            `json:"customer_id"`
	Name       string            `json:"name"`
	Grand      float64           `json:"grand"`
	OverduePct analytics.Metric  `json:"overdue_pct"`
	DSO        analytics.Metric  `json:"dso"`
	Risk       analytics.Risk    `json:"risk"`
	Tier       string            `json:"tier"`
	Balance    analytics.Balance `json:"balance"`
}

// handlePortfolio analyzes every customer concurrently and ranks them by
// outstanding total.
func (h *Handler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		h.respondError(w, "parse query", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	reports, err := h.service.AnalyzeAll(ctx, req.AsOf)
	if err != nil {
		h.respondError(w, "portfolio", err)
		return
	}
	entries := make([]PortfolioEntry, len(reports))
	for i, cr := range reports {
		entries[i] = PortfolioEntry{
			CustomerID: cr.Customer.ID,
			Name:       cr.Customer.Name,
			Grand:      cr.Report.Totals.Grand,
			OverduePct: cr.Report.Totals.OverduePct,
			DSO:        cr.Report.DSO,
			Risk:       cr.Report.Risk,
			Tier:       cr.Report.Tier.Label,
			Balance:    cr.Report.Balance,
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Grand > entries[j].Grand })
	httpx.JSON(w, http.StatusOK, map[string]any{"as_of": req.AsOf.Format(dayLayout), "customers": entries})
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.analyze(w, r)
	if !ok {
		return
	}
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteReportCSV(buf, report); err != nil {
		h.respondError(w, "write report csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", reportFilename(report)))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.respondError(w, "pdf exporter", fmt.Errorf("%w: %w", httpx.ErrUnavailable, export.ErrPDFDisabled))
		return
	}
	report, ok := h.analyze(w, r)
	if !ok {
		return
	}
	charts, err := renderCharts(r.Context(), report)
	if err != nil {
		h.respondError(w, "render charts", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	data, err := h.pdf.RenderReport(ctx, export.ReportPayload{Report: report, Charts: charts})
	if err != nil {
		h.respondError(w, "render pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.pdf\"", reportFilename(report)))
	if _, err := w.Write(data); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) handleChart(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := h.analyze(w, r)
		if !ok {
			return
		}
		chart, err := chartFor(kind, report)
		if err != nil {
			h.respondError(w, "render "+kind+" chart", err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write([]byte(chart)); err != nil {
			h.logError("stream svg", err)
		}
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		h.respondError(w, "refresh", fmt.Errorf("%w: refresh queue not configured", httpx.ErrUnavailable))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	taskID, err := h.refresher.RequestRefresh(ctx)
	if err != nil {
		h.respondError(w, "enqueue refresh", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// Chart kinds served under /receivables/charts.
const (
	ChartTrend       = "trend"
	ChartSeasonality = "seasonality"
	ChartTier        = "tier"
)

func chartFor(kind string, report analytics.AnalyticsReport) (template.HTML, error) {
	switch kind {
	case ChartTrend:
		labels := []string{report.AsOf.Time.Format("2006-01")}
		values := []float64{0}
		elapsed := []bool{false}
		if len(report.Trend) > 0 {
			labels = labels[:0]
			values = values[:0]
			elapsed = elapsed[:0]
			for _, p := range report.Trend {
				labels = append(labels, p.Period)
				values = append(values, p.Amount)
				elapsed = append(elapsed, p.Elapsed)
			}
		}
		return svg.Bars(svg.DefaultWidth, svg.DefaultHeight, values, labels, elapsed, svg.BarOpts{
			Title:          "Receivables by due month",
			Description:    "Open receivables grouped by due-date month",
			SeriesLabel:    "Current or upcoming",
			HighlightLabel: "Past months",
		})
	case ChartSeasonality:
		labels := make([]string, len(report.Seasonality))
		values := make([]float64, len(report.Seasonality))
		for i, p := range report.Seasonality {
			labels[i] = p.Month[:3]
			values[i] = p.Amount
		}
		return svg.Line(svg.DefaultWidth, svg.DefaultHeight, values, labels, svg.LineOpts{
			Title:       "Seasonality",
			Description: "Credit sales per calendar month",
			ShowDots:    true,
		})
	case ChartTier:
		labels := make([]string, len(analytics.RevenueTiers))
		for i, tier := range analytics.RevenueTiers {
			labels[i] = tier.Label
		}
		return svg.Ruler(svg.DefaultWidth, labels, report.Tier.Index, svg.RulerOpts{
			Title:       "Revenue tier",
			Description: "Outstanding total bracket",
		})
	default:
		return "", fmt.Errorf("%w: unknown chart %q", httpx.ErrNotFound, kind)
	}
}

// renderCharts builds every chart of a report concurrently.
func renderCharts(ctx context.Context, report analytics.AnalyticsReport) ([]template.HTML, error) {
	kinds := []string{ChartTrend, ChartSeasonality, ChartTier}
	charts := make([]template.HTML, len(kinds))
	g, _ := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			chart, err := chartFor(kind, report)
			if err != nil {
				return err
			}
			charts[i] = chart
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return charts, nil
}

func reportFilename(report analytics.AnalyticsReport) string {
	scope := "all"
	if report.CustomerID != analytics.AllCustomers {
		scope = strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				return r
			default:
				return '_'
			}
		}, report.CustomerID)
	}
	return fmt.Sprintf("receivables-%s-%s", scope, report.AsOf)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var vErr validationError
	switch {
	case errors.As(err, &vErr):
		err = fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	case errors.Is(err, analytics.ErrNoMatchingCustomer):
		err = fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	case errors.Is(err, analytics.ErrSchemaMismatch), errors.Is(err, analytics.ErrEmptyTable):
		err = fmt.Errorf("%w: %w", httpx.ErrUnprocessable, err)
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %w", httpx.ErrUnavailable, err)
	}
	status, _ := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logError(op, err)
	} else {
		h.logger.Debug(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
}
