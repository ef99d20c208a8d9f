package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Bars renders one bar per label. highlight may be nil; otherwise it flags bars
// drawn in the highlight colour and must match labels in length.
func Bars(width, height int, series []float64, labels []string, highlight []bool, opts BarOpts) (template.HTML, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("svg: series required")
	}
	if len(series) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match series")
	}
	if highlight != nil && len(highlight) != len(series) {
		return "", fmt.Errorf("svg: highlight length must match series")
	}
	c, err := newCanvas(width, height, opts.Padding, series)
	if err != nil {
		return "", err
	}

	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")
	color := fallback(opts.Color, "#0ea5e9")
	highlightColor := fallback(opts.HighlightColor, "#dc2626")
	seriesLabel := fallback(opts.SeriesLabel, "Amount")

	var b strings.Builder
	c.open(&b, opts.Title, opts.Description, "bar", "Bar chart", "Amount per period")
	c.grid(&b, opts.TickCount, axisColor, gridColor)

	slot := c.chartWidth / float64(len(series))
	barWidth := slot * 0.6
	highlighted := false
	for i, value := range series {
		fill := color
		name := seriesLabel
		if highlight != nil && highlight[i] {
			fill = highlightColor
			name = fallback(opts.HighlightLabel, seriesLabel)
			highlighted = true
		}
		x := c.padding + float64(i)*slot
		top, h := c.bar(value)
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s %s"></rect>`,
			x+(slot-barWidth)/2, top, barWidth, h, fill, template.HTMLEscapeString(name), template.HTMLEscapeString(labels[i]))
		c.xLabel(&b, x+slot/2, labels[i], axisColor)
	}

	legendY := math.Max(c.padding-12, 12)
	legendEntry(&b, c.padding, legendY, color, axisColor, seriesLabel)
	if highlighted && opts.HighlightLabel != "" {
		legendEntry(&b, c.padding+110, legendY, highlightColor, axisColor, opts.HighlightLabel)
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// bar returns the top edge and height of a bar from zero to value, clipped to
// the plotting area.
func (c *canvas) bar(value float64) (float64, float64) {
	zero := c.y(0)
	end := c.y(value)
	top, bottom := math.Min(zero, end), math.Max(zero, end)
	top = math.Max(top, c.padding)
	bottom = math.Min(bottom, c.bottom())
	return top, math.Max(bottom-top, 0)
}
