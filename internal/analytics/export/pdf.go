package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
)

// ErrPDFDisabled is returned when no converter endpoint is configured.
var ErrPDFDisabled = errors.New("export: pdf converter not configured")

// PDFExporter posts an HTML rendition of a report to a Gotenberg instance.
type PDFExporter struct {
	Endpoint string
	Client   *http.Client
}

// ReportPayload is a report together with its pre-rendered charts.
type ReportPayload struct {
	Report analytics.AnalyticsReport
	Charts []template.HTML
}

// RenderReport converts payload to PDF bytes.
func (p *PDFExporter) RenderReport(ctx context.Context, payload ReportPayload) ([]byte, error) {
	if p == nil || strings.TrimSpace(p.Endpoint) == "" {
		return nil, ErrPDFDisabled
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	var page bytes.Buffer
	if err := reportPage.Execute(&page, newPageData(payload)); err != nil {
		return nil, fmt.Errorf("export: render html: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(page.Bytes()); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(p.Endpoint, "/") + "/forms/chromium/convert/html"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export: convert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("export: converter status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return io.ReadAll(resp.Body)
}

type pageRow struct {
	Label string
	Value string
}

type pageData struct {
	Title   string
	Summary []pageRow
	Buckets []analytics.AgingBucket
	Trend   []analytics.TrendPoint
	Charts  []template.HTML
}

func newPageData(p ReportPayload) pageData {
	r := p.Report
	title := "All customers"
	if r.CustomerID != analytics.AllCustomers {
		title = "Customer " + r.CustomerID
	}
	return pageData{
		Title: fmt.Sprintf("Receivables: %s, %s", title, r.AsOf),
		Summary: []pageRow{
			{"Grand total", FormatAmount(r.Totals.Grand)},
			{"Overdue %", FormatMetric(r.Totals.OverduePct)},
			{"Billing term (days)", FormatMetric(r.BillingTerm)},
			{"Collection term (days)", FormatMetric(r.CollectionTerm)},
			{"DSO (days)", FormatMetric(r.DSO)},
			{"CEI %", FormatMetric(r.CEI)},
			{"Turnover", FormatMetric(r.Turnover)},
			{"Revenue tier", r.Tier.Label},
			{"Risk", string(r.Risk)},
		},
		Buckets: r.Buckets,
		Trend:   r.Trend,
		Charts:  p.Charts,
	}
}

var reportPage = template.Must(template.New("report").Funcs(template.FuncMap{
	"amount": FormatAmount,
}).Parse(`<html><head><meta charset="utf-8"><style>
body{font-family:sans-serif;margin:24px;}h1{font-size:20px;}table{width:100%;border-collapse:collapse;margin-bottom:16px;}
th,td{border:1px solid #ddd;padding:6px;text-align:right;}th,.label{text-align:left;}th{background:#f5f5f5;}
</style></head><body>
<h1>{{.Title}}</h1>
<table><tbody>{{range .Summary}}<tr><td class="label">{{.Label}}</td><td>{{.Value}}</td></tr>{{end}}</tbody></table>
<table><thead><tr><th>Bucket</th><th>Count</th><th>Amount</th></tr></thead><tbody>
{{range .Buckets}}<tr><td class="label">{{.Bucket}}</td><td>{{.Count}}</td><td>{{amount .Amount}}</td></tr>{{end}}
</tbody></table>
{{if .Trend}}<table><thead><tr><th>Period</th><th>Amount</th></tr></thead><tbody>
{{range .Trend}}<tr><td class="label">{{.Period}}</td><td>{{amount .Amount}}</td></tr>{{end}}
</tbody></table>{{end}}
{{range .Charts}}<section>{{.}}</section>{{end}}
</body></html>`))
