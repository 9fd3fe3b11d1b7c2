package report

// Color classifies one comparison row for the presentation layer.
type Color string

const (
	ColorRed    Color = "red"    // discrepancy or missing side
	ColorGreen  Color = "green"  // quantities match
	ColorYellow Color = "yellow" // quantities differ
)

// Classify applies the comparison coloring policy to one joined row.
// Quantities default to zero when a side is absent, so a missing side
// classifies as red.
func Classify(forecastQty, orderedQty float64) Color {
	switch {
	case forecastQty == 0 || orderedQty == 0:
		return ColorRed
	case forecastQty == orderedQty:
		return ColorGreen
	default:
		return ColorYellow
	}
}
