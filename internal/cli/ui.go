package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/boardroute/pkg/layout"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success, routed nets
	colorYellow = lipgloss.Color("220") // Amber - warnings, partial nets
	colorRed    = lipgloss.Color("167") // Soft red - errors, unrouted nets
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleTableHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// statusStyle colors a net status.
func statusStyle(s layout.Status) lipgloss.Style {
	switch s {
	case layout.StatusRouted:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case layout.StatusPartial:
		return lipgloss.NewStyle().Foreground(colorYellow)
	case layout.StatusUnrouted:
		return lipgloss.NewStyle().Foreground(colorRed)
	}
	return StyleDim
}

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// printNewline prints an empty line.
func printNewline() {
	fmt.Println()
}

// =============================================================================
// Routing Results
// =============================================================================

// statsLine renders routing statistics on a single line.
func statsLine(s layout.Stats, cached bool) string {
	parts := []string{
		fmt.Sprintf("%s routed", formatPercent(s.CompletionRate)),
		fmt.Sprintf("%d/%d nets", s.NetsCompleted, s.NetsAttempted),
		fmt.Sprintf("%d traces", s.TotalTraces),
		fmt.Sprintf("%d vias", s.ViaCount),
		fmt.Sprintf("%.1f mm", s.TotalLengthMM),
	}
	if s.LengthMatchedNets > 0 {
		parts = append(parts, fmt.Sprintf("%d length-matched", s.LengthMatchedNets))
	}

	status, st := iconFresh, styleComputed
	if cached {
		status, st = iconCached, styleCached
	}

	line := "  "
	for i, part := range parts {
		if i > 0 {
			line += StyleDim.Render(" · ")
		}
		line += StyleDim.Render(part)
	}
	return line + StyleDim.Render(" · ") + st.Render(status)
}

// printRouteStats prints the layout statistics and any unrouted nets.
func printRouteStats(l layout.Layout, cached bool) {
	fmt.Println(statsLine(l.Stats, cached))
	for _, name := range l.Stats.UnroutedNets {
		printDetail("unrouted: %s", name)
	}
	for _, name := range l.Stats.PartialNets {
		printDetail("partial:  %s", name)
	}
}

// printWarnings prints layout warnings.
func printWarnings(ws []layout.Warning) {
	for _, w := range ws {
		printWarning("%s", w.String())
	}
}

// netTable renders one row per net.
func netTable(nets []layout.RoutedNet) string {
	rows := make([][]string, 0, len(nets))
	for _, n := range nets {
		rows = append(rows, []string{
			n.Name,
			string(n.Status),
			fmt.Sprintf("%d/%d", n.RoutedEdges, n.Edges),
			strconv.FormatFloat(n.LengthMM, 'f', 2, 64),
			strconv.Itoa(len(n.Vias)),
			n.MatchGroup,
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Net", "Status", "Edges", "Length mm", "Vias", "Group").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == -1 {
				return styleTableHeader.Padding(0, 1)
			}
			if col == 1 && row >= 0 && row < len(nets) {
				return statusStyle(nets[row].Status).Padding(0, 1)
			}
			return base
		}).
		Render()
}

// formatPercent renders a 0..1 ratio as a percentage.
func formatPercent(r float64) string {
	return strconv.FormatFloat(r*100, 'f', 1, 64) + "%"
}
