package formatter

import (
	"fmt"
	"strings"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// RenderProgress renders a bar like [████░░░░]  45% for a percentage in
// [0, 100]. Green above 66, yellow from 33, red below.
func RenderProgress(pct float64, width int) string {
	pct = min(max(pct, 0), 100)
	width = max(width, 2)

	filled := min(int(pct/100*float64(width)), width)
	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)

	style := StyleGreen
	if pct < 33 {
		style = StyleRed
	} else if pct < 66 {
		style = StyleYellow
	}
	return fmt.Sprintf("[%s] %3.0f%%", style.Render(bar), pct)
}

// RenderUtilization colors a budget utilisation figure: over budget is red,
// above 90% yellow.
func RenderUtilization(pct float64) string {
	text := fmt.Sprintf("%.1f%%", pct)
	switch {
	case pct > 100:
		return StyleRed.Render(text)
	case pct > 90:
		return StyleYellow.Render(text)
	default:
		return StyleGreen.Render(text)
	}
}
