package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Line renders a line chart with an optional filled area.
func Line(width, height int, series []float64, labels []string, opts LineOpts) (template.HTML, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("svg: series required")
	}
	if len(series) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match series")
	}
	c, err := newCanvas(width, height, opts.Padding, series)
	if err != nil {
		return "", err
	}
	strokeColor := fallback(opts.StrokeColor, "#2563eb")
	fillColor := fallback(opts.FillColor, "rgba(37,99,235,0.12)")
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")

	xs := make([]float64, len(series))
	for i := range series {
		xs[i] = c.padding + c.chartWidth/2
		if len(series) > 1 {
			xs[i] = c.padding + float64(i)*c.chartWidth/float64(len(series)-1)
		}
	}

	var path strings.Builder
	for i, value := range series {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		} else {
			path.WriteByte(' ')
		}
		fmt.Fprintf(&path, "%s%.2f %.2f", cmd, xs[i], c.y(value))
	}

	var b strings.Builder
	c.open(&b, opts.Title, opts.Description, "line", "Line chart", "Trend data")
	c.grid(&b, opts.TickCount, axisColor, gridColor)

	if fillColor != "" {
		area := fmt.Sprintf("%s L%.2f %.2f L%.2f %.2f Z", path.String(), xs[len(xs)-1], c.bottom(), xs[0], c.bottom())
		fmt.Fprintf(&b, `<path d="%s" fill="%s" stroke="none" aria-hidden="true"></path>`, area, fillColor)
	}
	fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, path.String(), strokeColor)

	for i, value := range series {
		if opts.ShowDots {
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"></circle>`, xs[i], c.y(value), strokeColor)
		}
		c.xLabel(&b, xs[i], labels[i], axisColor)
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
