package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
	"github.com/odyssey-erp/odyssey-receivables/internal/ingest"
	"github.com/odyssey-erp/odyssey-receivables/jobs"
)

type stubService struct {
	last   analytics.Request
	report analytics.AnalyticsReport
	err    error
}

func (s *stubService) Analyze(_ context.Context, req analytics.Request) (analytics.AnalyticsReport, error) {
	s.last = req
	if s.err != nil {
		return analytics.AnalyticsReport{}, s.err
	}
	return s.report, nil
}

func (s *stubService) Customers(context.Context) ([]analytics.CustomerOption, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []analytics.CustomerOption{
		{ID: "10", Name: "ACME", Key: analytics.NewCustomerKey("10", "ACME")},
		{ID: "20", Name: "Beta", Key: analytics.NewCustomerKey("20", "Beta")},
	}, nil
}

type stubRefresher struct {
	result ingest.RefreshResult
	err    error
}

func (s stubRefresher) Refresh(context.Context) (ingest.RefreshResult, error) {
	return s.result, s.err
}

type stubRequester struct{ calls int }

func (s *stubRequester) RequestRefresh(context.Context) (string, error) {
	s.calls++
	return "task-42", nil
}

type stubInspector struct{}

func (stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}, nil
}

func (stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, nil
}

func criticalReport() analytics.AnalyticsReport {
	return analytics.AnalyticsReport{
		CustomerID: "10",
		AsOf:       analytics.ParseDate("2024-06-15"),
		Totals: analytics.Totals{
			Overdue:    12500,
			NotDue:     2500,
			Grand:      15000,
			OverduePct: analytics.Metric{Value: 83.333333, Defined: true},
			NotDuePct:  analytics.Metric{Value: 16.666667, Defined: true},
		},
		DSO:        analytics.Metric{},
		Tier:       analytics.TierFor(15000),
		Risk:       analytics.RiskCritical,
		Balance:    analytics.BalanceOverdueExceeds,
		Trend:      []analytics.TrendPoint{{Period: "2024-05", Amount: 12500, Elapsed: true}},
		Degenerate: []string{"dso"},
	}
}

func newCLI(t *testing.T, svc *stubService, refresher DatasetRefresher) *ReceivablesCLI {
	t.Helper()
	cli, err := NewReceivablesCLI(svc, refresher)
	require.NoError(t, err)
	return cli
}

func TestAnalyzeCommandText(t *testing.T) {
	svc := &stubService{report: criticalReport()}
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := newCLI(t, svc, nil).AnalyzeCommand(context.Background(), AnalyzeOptions{
		CustomerID: " 10 ",
		AsOf:       "2024-06-15",
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, ExitOK, code)
	require.Empty(t, stderr.String())
	require.Equal(t, "10", svc.last.CustomerID)
	require.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), svc.last.AsOf)

	out := stdout.String()
	require.Contains(t, out, "Receivables for customer 10 as of 2024-06-15")
	require.Contains(t, out, "12,500.00")
	require.Contains(t, out, "(83.33%)")
	require.Contains(t, out, "DSO            n/a days")
	require.Contains(t, out, "12,500.00 *")
	require.Contains(t, out, "Undefined: dso")
}

func TestAnalyzeCommandFailOnCritical(t *testing.T) {
	svc := &stubService{report: criticalReport()}
	code := newCLI(t, svc, nil).AnalyzeCommand(context.Background(), AnalyzeOptions{
		FailOnCritical: true,
		Format:         FormatJSON,
		Stdout:         new(bytes.Buffer),
		Stderr:         new(bytes.Buffer),
	})
	require.Equal(t, ExitCritical, code)
}

func TestAnalyzeCommandFormats(t *testing.T) {
	svc := &stubService{report: criticalReport()}
	cli := newCLI(t, svc, nil)

	stdout := new(bytes.Buffer)
	require.Equal(t, ExitOK, cli.AnalyzeCommand(context.Background(), AnalyzeOptions{Format: "JSON", Stdout: stdout, Stderr: new(bytes.Buffer)}))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	require.Equal(t, "critical", decoded["risk"])

	stdout.Reset()
	require.Equal(t, ExitOK, cli.AnalyzeCommand(context.Background(), AnalyzeOptions{Format: FormatCSV, Stdout: stdout, Stderr: new(bytes.Buffer)}))
	reader := csv.NewReader(stdout)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Metric", "Value"}, records[0])

	stderr := new(bytes.Buffer)
	require.Equal(t, ExitUsage, cli.AnalyzeCommand(context.Background(), AnalyzeOptions{Format: "xml", Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "unknown --format")
}

func TestAnalyzeCommandErrors(t *testing.T) {
	svc := &stubService{err: fmt.Errorf("customer 99: %w", analytics.ErrNoMatchingCustomer)}
	cli := newCLI(t, svc, nil)

	stderr := new(bytes.Buffer)
	require.Equal(t, ExitUsage, cli.AnalyzeCommand(context.Background(), AnalyzeOptions{AsOf: "15/06/2024", Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "invalid --as-of")

	stderr.Reset()
	require.Equal(t, ExitError, cli.AnalyzeCommand(context.Background(), AnalyzeOptions{CustomerID: "99", Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "no matching customer")
}

func TestCustomersCommand(t *testing.T) {
	cli := newCLI(t, &stubService{}, nil)
	stdout := new(bytes.Buffer)
	require.Equal(t, ExitOK, cli.CustomersCommand(context.Background(), CustomersOptions{Stdout: stdout, Stderr: new(bytes.Buffer)}))
	require.Equal(t, "10 - ACME\n20 - Beta\n2 customer(s)\n", stdout.String())

	stdout.Reset()
	require.Equal(t, ExitOK, cli.CustomersCommand(context.Background(), CustomersOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)}))
	var options []analytics.CustomerOption
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &options))
	require.Len(t, options, 2)
}

func TestRefreshCommand(t *testing.T) {
	refresher := stubRefresher{result: ingest.RefreshResult{Fingerprint: "0123456789abcdef", Changed: true, Version: 4, Rows: 1200}}
	cli := newCLI(t, &stubService{}, refresher)
	stdout := new(bytes.Buffer)
	require.Equal(t, ExitOK, cli.RefreshCommand(context.Background(), RefreshOptions{Stdout: stdout, Stderr: new(bytes.Buffer)}))
	require.Equal(t, "dataset changed: 1,200 rows, fingerprint 0123456789ab, cache version 4\n", stdout.String())

	failing := newCLI(t, &stubService{}, stubRefresher{err: errors.New("source offline")})
	stderr := new(bytes.Buffer)
	require.Equal(t, ExitError, failing.RefreshCommand(context.Background(), RefreshOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "source offline")

	unset := newCLI(t, &stubService{}, nil)
	require.Equal(t, ExitError, unset.RefreshCommand(context.Background(), RefreshOptions{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}))
}

func TestRunDispatch(t *testing.T) {
	svc := &stubService{report: criticalReport()}
	requester := &stubRequester{}
	deps := Deps{
		Receivables: newCLI(t, svc, stubRefresher{}),
		Jobs:        NewJobsCLI(requester, stubInspector{}),
	}

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	deps.Stdout, deps.Stderr = stdout, stderr
	require.Equal(t, ExitOK, Run(context.Background(), []string{"analyze", "--key", "10 - ACME", "--format", "json"}, deps))
	require.Equal(t, analytics.CustomerKey("10 - ACME"), svc.last.CustomerKey)

	stdout.Reset()
	require.Equal(t, ExitOK, Run(context.Background(), []string{"refresh", "--enqueue"}, deps))
	require.Equal(t, "enqueued receivables:dataset:refresh as task-42\n", stdout.String())
	require.Equal(t, 1, requester.calls)

	stdout.Reset()
	require.Equal(t, ExitOK, Run(context.Background(), []string{"jobs", "status"}, deps))
	require.JSONEq(t, `{"queue":"default","pending":3,"active":0,"scheduled":0,"retry":1}`, stdout.String())

	require.Equal(t, ExitError, Run(context.Background(), []string{"jobs", "trigger", "mail:send"}, deps))
	require.Equal(t, ExitUsage, Run(context.Background(), []string{"analyze", "--bogus"}, deps))
	require.Equal(t, ExitUsage, Run(context.Background(), []string{"frobnicate"}, deps))
	require.Equal(t, ExitOK, Run(context.Background(), []string{"help"}, deps))
	require.True(t, IsCommand("customers"))
	require.False(t, IsCommand("serve"))
}

func TestRunWithoutService(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := Run(context.Background(), []string{"customers"}, Deps{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, ExitError, code)
	require.Contains(t, stderr.String(), "not configured")
}
