// Package svg renders small accessible charts as inline SVG markup.
package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

var errViewport = errors.New("svg: viewport too small")

// canvas is the plotting area of a value chart. Values map linearly onto the
// vertical axis between minVal and maxVal, which always include zero.
type canvas struct {
	width, height int
	padding       float64
	chartWidth    float64
	chartHeight   float64
	minVal        float64
	maxVal        float64
	scale         float64
}

func newCanvas(width, height int, padding float64, values []float64) (*canvas, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if padding <= 0 {
		padding = DefaultPadding
	}
	c := &canvas{
		width:       width,
		height:      height,
		padding:     padding,
		chartWidth:  float64(width) - 2*padding,
		chartHeight: float64(height) - 2*padding,
	}
	if c.chartWidth <= 0 || c.chartHeight <= 0 {
		return nil, errViewport
	}
	c.minVal, c.maxVal = bounds(values)
	c.minVal = math.Min(c.minVal, 0)
	c.maxVal = math.Max(c.maxVal, 0)
	if almostEqual(c.maxVal, c.minVal) {
		c.maxVal = c.minVal + 1
	}
	c.scale = c.chartHeight / (c.maxVal - c.minVal)
	return c, nil
}

func (c *canvas) bottom() float64 { return c.padding + c.chartHeight }

// y maps a value to its vertical coordinate.
func (c *canvas) y(value float64) float64 {
	return c.bottom() - (value-c.minVal)*c.scale
}

func (c *canvas) open(b *strings.Builder, title, desc, kind, defaultTitle, defaultDesc string) {
	openSVG(b, c.width, c.height, title, desc, kind, defaultTitle, defaultDesc)
}

func (c *canvas) grid(b *strings.Builder, ticks int, axisColor, gridColor string) {
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	right := c.padding + c.chartWidth
	for i := 0; i <= ticks; i++ {
		ratio := float64(i) / float64(ticks)
		value := c.minVal + (c.maxVal-c.minVal)*ratio
		y := c.bottom() - ratio*c.chartHeight
		fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, c.padding, y, right, y, gridColor)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, c.padding-6, y+4, axisColor, template.HTMLEscapeString(formatTick(value)))
	}
	fmt.Fprintf(b, `<g stroke="%s" aria-label="Axes">`, axisColor)
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, c.padding, c.padding, c.padding, c.bottom())
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, c.padding, c.y(0), right, c.y(0))
	b.WriteString("</g>")
}

func (c *canvas) xLabel(b *strings.Builder, x float64, label, color string) {
	fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, x, c.bottom()+14, color, template.HTMLEscapeString(label))
}

func openSVG(b *strings.Builder, width, height int, title, desc, kind, defaultTitle, defaultDesc string) {
	titleID := makeID(title, kind+"-title")
	descID := makeID(title, kind+"-desc")
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, width, height, titleID, descID)
	fmt.Fprintf(b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(title, defaultTitle)))
	fmt.Fprintf(b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(fallback(desc, defaultDesc)))
}

func legendEntry(b *strings.Builder, x, y float64, color, textColor, label string) {
	fmt.Fprintf(b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, x, y-8, color)
	fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="start">%s</text>`, x+14, y, textColor, template.HTMLEscapeString(label))
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func bounds(series []float64) (float64, float64) {
	if len(series) == 0 {
		return 0, 0
	}
	minVal, maxVal := series[0], series[0]
	for _, v := range series[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", v/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
