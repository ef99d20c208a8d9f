package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Ruler renders ordered segments of equal width with the active one emphasised.
// active outside the label range leaves every segment plain.
func Ruler(width int, labels []string, active int, opts RulerOpts) (template.HTML, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("svg: labels required")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	inner := float64(width) - 2*padding
	if inner <= 0 {
		return "", errViewport
	}
	color := fallback(opts.Color, "#e2e8f0")
	activeColor := fallback(opts.ActiveColor, "#f59e0b")
	textColor := fallback(opts.TextColor, "#334155")

	var b strings.Builder
	openSVG(&b, width, RulerHeight, opts.Title, opts.Description, "ruler", "Tier ruler", "Position within ordered tiers")

	segment := inner / float64(len(labels))
	top := padding
	barHeight := float64(RulerHeight) - 2*padding - 14
	if barHeight < 8 {
		barHeight = 8
	}
	for i, label := range labels {
		x := padding + float64(i)*segment
		fill := color
		extra := ""
		if i == active {
			fill = activeColor
			extra = ` aria-current="true" stroke="#92400e" stroke-width="2"`
		}
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" rx="3"%s aria-label="%s"></rect>`,
			x+1, top, segment-2, barHeight, fill, extra, template.HTMLEscapeString(label))
		weight := "normal"
		if i == active {
			weight = "bold"
		}
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" font-weight="%s" text-anchor="middle">%s</text>`,
			x+segment/2, top+barHeight+14, textColor, weight, template.HTMLEscapeString(label))
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
