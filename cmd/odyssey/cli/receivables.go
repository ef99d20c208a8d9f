package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
	"github.com/odyssey-erp/odyssey-receivables/internal/analytics/export"
	"github.com/odyssey-erp/odyssey-receivables/internal/ingest"
)

// Exit codes shared by the receivables commands.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitUsage    = 2
	ExitCritical = 10
)

// ReportService is the analytics contract used by the commands.
type ReportService interface {
	Analyze(ctx context.Context, req analytics.Request) (analytics.AnalyticsReport, error)
	Customers(ctx context.Context) ([]analytics.CustomerOption, error)
}

// DatasetRefresher reloads the ledgers synchronously.
type DatasetRefresher interface {
	Refresh(ctx context.Context) (ingest.RefreshResult, error)
}

// ReceivablesCLI runs receivables reports from the terminal.
type ReceivablesCLI struct {
	service   ReportService
	refresher DatasetRefresher
	printer   *message.Printer
}

// NewReceivablesCLI wires the commands. refresher may be nil.
func NewReceivablesCLI(service ReportService, refresher DatasetRefresher) (*ReceivablesCLI, error) {
	if service == nil {
		return nil, errors.New("receivables cli: service required")
	}
	return &ReceivablesCLI{
		service:   service,
		refresher: refresher,
		printer:   message.NewPrinter(language.English),
	}, nil
}

// AnalyzeOptions defines available flags for the analyze command.
type AnalyzeOptions struct {
	CustomerID  string
	CustomerKey string
	AsOf        string
	Format      string
	// FailOnCritical makes a critical risk grade exit with ExitCritical.
	FailOnCritical bool
	Stdout         io.Writer
	Stderr         io.Writer
}

// Output formats of the analyze command.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// AnalyzeCommand prints one report.
func (c *ReceivablesCLI) AnalyzeCommand(ctx context.Context, opts AnalyzeOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	req := analytics.Request{
		CustomerID:  strings.TrimSpace(opts.CustomerID),
		CustomerKey: analytics.CustomerKey(strings.TrimSpace(opts.CustomerKey)),
	}
	if raw := strings.TrimSpace(opts.AsOf); raw != "" {
		asOf, err := time.Parse("2006-01-02", raw)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "analyze: invalid --as-of %q (expected YYYY-MM-DD)\n", opts.AsOf)
			return ExitUsage
		}
		req.AsOf = asOf
	}
	report, err := c.service.Analyze(ctx, req)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "analyze: %v\n", err)
		return ExitError
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatText:
		c.renderReport(stdout, report)
	case FormatJSON:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			_, _ = fmt.Fprintf(stderr, "analyze: encode json: %v\n", err)
			return ExitError
		}
	case FormatCSV:
		if err := export.WriteReportCSV(stdout, report); err != nil {
			_, _ = fmt.Fprintf(stderr, "analyze: write csv: %v\n", err)
			return ExitError
		}
	default:
		_, _ = fmt.Fprintf(stderr, "analyze: unknown --format %q\n", opts.Format)
		return ExitUsage
	}
	if opts.FailOnCritical && report.Risk == analytics.RiskCritical {
		return ExitCritical
	}
	return ExitOK
}

func (c *ReceivablesCLI) renderReport(out io.Writer, r analytics.AnalyticsReport) {
	p := c.printer
	scope := "all customers"
	if r.CustomerID != analytics.AllCustomers {
		scope = "customer " + r.CustomerID
	}
	_, _ = fmt.Fprintf(out, "Receivables for %s as of %s\n", scope, r.AsOf)
	_, _ = p.Fprintf(out, "  Overdue        %14.2f  (%s%%)\n", r.Totals.Overdue, c.metric(r.Totals.OverduePct))
	_, _ = p.Fprintf(out, "  Not yet due    %14.2f  (%s%%)\n", r.Totals.NotDue, c.metric(r.Totals.NotDuePct))
	_, _ = p.Fprintf(out, "  Grand total    %14.2f\n", r.Totals.Grand)
	if r.Excluded > 0 {
		_, _ = p.Fprintf(out, "  Excluded rows  %14d  (no due date)\n", r.Excluded)
	}
	_, _ = fmt.Fprintf(out, "  Billing term   %s days (simple %s)\n", c.metric(r.BillingTerm), c.metric(r.SimpleBillingTerm))
	_, _ = fmt.Fprintf(out, "  Collection     %s days (simple %s)\n", c.metric(r.CollectionTerm), c.metric(r.SimpleCollectionTerm))
	_, _ = fmt.Fprintf(out, "  DSO            %s days\n", c.metric(r.DSO))
	_, _ = fmt.Fprintf(out, "  CEI            %s%%\n", c.metric(r.CEI))
	_, _ = fmt.Fprintf(out, "  Turnover       %s\n", c.metric(r.Turnover))
	_, _ = fmt.Fprintf(out, "  Tier           %s\n", r.Tier.Label)
	_, _ = fmt.Fprintf(out, "  Risk           %s\n", r.Risk)
	_, _ = fmt.Fprintf(out, "  Balance        %s\n", r.Balance)
	if r.Performance.Variation.Defined {
		_, _ = fmt.Fprintf(out, "  Performance    %s%% against sales before %s\n", c.metric(r.Performance.Variation), r.Performance.Cutoff)
	}
	if len(r.Trend) > 0 {
		_, _ = fmt.Fprintln(out, "Due-date trend:")
		for _, point := range r.Trend {
			marker := ""
			if point.Elapsed {
				marker = " *"
			}
			_, _ = p.Fprintf(out, "  %s %14.2f%s\n", point.Period, point.Amount, marker)
		}
	}
	if len(r.Degenerate) > 0 {
		_, _ = fmt.Fprintf(out, "Undefined: %s\n", strings.Join(r.Degenerate, ", "))
	}
}

func (c *ReceivablesCLI) metric(m analytics.Metric) string {
	if !m.Defined {
		return export.Undefined
	}
	return c.printer.Sprintf("%.2f", m.Value)
}

// CustomersOptions defines available flags for the customers command.
type CustomersOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CustomersCommand lists the selectable customers.
func (c *ReceivablesCLI) CustomersCommand(ctx context.Context, opts CustomersOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	options, err := c.service.Customers(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "customers: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(options); err != nil {
			_, _ = fmt.Fprintf(stderr, "customers: encode json: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
	for _, option := range options {
		_, _ = fmt.Fprintln(stdout, option.Key)
	}
	_, _ = c.printer.Fprintf(stdout, "%d customer(s)\n", len(options))
	return ExitOK
}

// RefreshOptions defines available flags for the refresh command.
type RefreshOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RefreshCommand reloads both ledgers in process.
func (c *ReceivablesCLI) RefreshCommand(ctx context.Context, opts RefreshOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	if c.refresher == nil {
		_, _ = fmt.Fprintln(stderr, "refresh: dataset loader not configured")
		return ExitError
	}
	result, err := c.refresher.Refresh(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "refresh: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(result); err != nil {
			_, _ = fmt.Fprintf(stderr, "refresh: encode json: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
	state := "unchanged"
	if result.Changed {
		state = "changed"
	}
	_, _ = c.printer.Fprintf(stdout, "dataset %s: %d rows, fingerprint %s, cache version %d\n", state, result.Rows, shortFingerprint(result.Fingerprint), result.Version)
	return ExitOK
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func streams(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
