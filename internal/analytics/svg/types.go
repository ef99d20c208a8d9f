package svg

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	StrokeColor string
	FillColor   string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
}

// BarOpts customises the bar chart renderer. Bars flagged in the highlight slice
// use HighlightColor.
type BarOpts struct {
	Title          string
	Description    string
	SeriesLabel    string
	HighlightLabel string
	Color          string
	HighlightColor string
	AxisColor      string
	GridColor      string
	Padding        float64
	TickCount      int
}

// RulerOpts customises the tier ruler.
type RulerOpts struct {
	Title       string
	Description string
	Color       string
	ActiveColor string
	TextColor   string
	Padding     float64
}

// Defaults for the receivables charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 24.0
	DefaultTicks   = 6

	// RulerHeight fits one row of tier segments with labels.
	RulerHeight = 96
)
