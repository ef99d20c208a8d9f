package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
)

func sampleReport() analytics.AnalyticsReport {
	return analytics.AnalyticsReport{
		CustomerID: "10",
		AsOf:       analytics.ParseDate("2024-06-15"),
		Totals: analytics.Totals{
			Overdue:    1000,
			NotDue:     2000,
			Grand:      3000,
			OverduePct: analytics.Metric{Value: 100.0 / 3, Defined: true},
		},
		Buckets: []analytics.AgingBucket{{Bucket: analytics.BucketOverdue, Count: 1, Amount: 1000}},
		Trend:   []analytics.TrendPoint{{Period: "2024-06", Amount: 3000}},
		Tier:    analytics.TierFor(3000),
		Risk:    analytics.RiskCritical,
	}
}

func TestWriteReportCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteReportCSV(buf, sampleReport()); err != nil {
		t.Fatalf("report csv error: %v", err)
	}
	reader := csv.NewReader(bytes.NewReader(buf.Bytes()))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	values := make(map[string]string)
	for _, record := range records {
		if len(record) == 2 {
			values[record[0]] = record[1]
		}
	}
	if values["Grand Total"] != "3000.00" || values["Overdue %"] != "33.33" {
		t.Fatalf("unexpected summary values %v", values)
	}
	if values["DSO (days)"] != Undefined {
		t.Fatalf("undefined DSO must be flagged, got %q", values["DSO (days)"])
	}
	if !strings.Contains(buf.String(), "2024-06,3000.00,false") {
		t.Fatalf("expected trend row in %s", buf.String())
	}
}

func TestPDFExporterRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/chromium/convert/html" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, _, err := r.FormFile("files")
		if err != nil {
			t.Errorf("missing html file: %v", err)
			return
		}
		html, _ := io.ReadAll(file)
		if !strings.Contains(string(html), "Customer 10") || !strings.Contains(string(html), "<svg>chart</svg>") {
			t.Errorf("unexpected html %s", html)
		}
		_, _ = w.Write([]byte("PDF"))
	}))
	defer srv.Close()

	exporter := &PDFExporter{Endpoint: srv.URL}
	data, err := exporter.RenderReport(context.Background(), ReportPayload{
		Report: sampleReport(),
		Charts: []template.HTML{"<svg>chart</svg>"},
	})
	if err != nil {
		t.Fatalf("pdf render error: %v", err)
	}
	if string(data) != "PDF" {
		t.Fatalf("unexpected payload %q", string(data))
	}
}

func TestPDFExporterDisabled(t *testing.T) {
	var exporter *PDFExporter
	if _, err := exporter.RenderReport(context.Background(), ReportPayload{}); !errors.Is(err, ErrPDFDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}
}
