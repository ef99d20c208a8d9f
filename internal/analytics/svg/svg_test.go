package svg

import (
	"strings"
	"testing"
)

func TestBarsHighlightsFlaggedBars(t *testing.T) {
	html, err := Bars(420, 220, []float64{500, 600, -50}, []string{"2025-01", "2025-02", "2025-03"}, []bool{true, false, false}, BarOpts{
		Title:          "Receivables by due month",
		SeriesLabel:    "Upcoming",
		HighlightLabel: "Past months",
		Color:          "#111111",
		HighlightColor: "#222222",
	})
	if err != nil {
		t.Fatalf("bars renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") || !strings.HasSuffix(output, "</svg>") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if got := strings.Count(output, `fill="#222222" aria-label="Past months`); got != 1 {
		t.Fatalf("expected one highlighted bar, got %d", got)
	}
	if got := strings.Count(output, `fill="#111111" aria-label="Upcoming`); got != 2 {
		t.Fatalf("expected two plain bars, got %d", got)
	}
	if !strings.Contains(output, "receivables-by-due-month-bar-title") {
		t.Fatalf("expected accessible title id")
	}
}

func TestBarsValidatesLengths(t *testing.T) {
	if _, err := Bars(0, 0, []float64{1}, []string{"a", "b"}, nil, BarOpts{}); err == nil {
		t.Fatalf("expected label length error")
	}
	if _, err := Bars(0, 0, []float64{1}, []string{"a"}, []bool{true, false}, BarOpts{}); err == nil {
		t.Fatalf("expected highlight length error")
	}
	if _, err := Bars(20, 20, []float64{1}, []string{"a"}, nil, BarOpts{Padding: 30}); err == nil {
		t.Fatalf("expected viewport error")
	}
}

func TestLineProducesSVG(t *testing.T) {
	html, err := Line(400, 200, []float64{100, 200, 150}, []string{"Jan", "Feb", "Mar"}, LineOpts{
		Title:    "Seasonality",
		ShowDots: true,
	})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	output := string(html)
	if !strings.Contains(output, "<path") || strings.Count(output, "<circle") != 3 {
		t.Fatalf("expected path and dots in svg: %s", output)
	}
	if !strings.Contains(output, "aria-labelledby") {
		t.Fatalf("expected accessibility attributes")
	}
}

func TestRulerMarksActiveSegment(t *testing.T) {
	html, err := Ruler(600, []string{"≤10k", "11k–50k", "<script>"}, 1, RulerOpts{Title: "Tier"})
	if err != nil {
		t.Fatalf("ruler renderer error: %v", err)
	}
	output := string(html)
	if strings.Count(output, `aria-current="true"`) != 1 {
		t.Fatalf("expected exactly one active segment")
	}
	if strings.Contains(output, "<script>") {
		t.Fatalf("labels must be escaped")
	}
	if _, err := Ruler(600, nil, 0, RulerOpts{}); err == nil {
		t.Fatalf("expected labels error")
	}
}

func TestFormatTick(t *testing.T) {
	cases := map[float64]string{0: "0", 12.5: "12.50", 1500: "1.5k", 2_500_000: "2.5M", 3_000_000_000: "3.0B"}
	for in, want := range cases {
		if got := formatTick(in); got != want {
			t.Fatalf("formatTick(%v) = %q, want %q", in, got, want)
		}
	}
}
