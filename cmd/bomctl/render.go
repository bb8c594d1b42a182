package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/charmbracelet/lipgloss"
)

// tag colors by level
var levelColors = map[string]lipgloss.Color{
	"magenta": lipgloss.Color("#EB2F96"),
	"red":     lipgloss.Color("#F5222D"),
	"volcano": lipgloss.Color("#FA541C"),
	"orange":  lipgloss.Color("#FA8C16"),
	"gold":    lipgloss.Color("#FAAD14"),
	"green":   lipgloss.Color("#52C41A"),
	"cyan":    lipgloss.Color("#13C2C2"),
}

var (
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#6C6C6C"})
	inactiveStyle = dimStyle.Italic(true)
)

func levelTag(l entity.Level) string {
	return lipgloss.NewStyle().
		Foreground(levelColors[l.Color()]).
		Bold(true).
		Render("[" + l.Code() + "]")
}

// renderTree writes one line per node, indented by depth.
func renderTree(w io.Writer, roots []*entity.BOMNode) {
	for row := range bomtree.Rows(roots) {
		n := row.Node
		var b strings.Builder
		b.WriteString(strings.Repeat("  ", int(row.Level)))
		b.WriteString(levelTag(row.Level))
		b.WriteString(" ")
		b.WriteString(n.Title)
		if n.PartID != "" && n.PartID != n.Title {
			b.WriteString(" ")
			b.WriteString(dimStyle.Render(n.PartID))
		}
		if row.Level >= entity.LevelPart {
			detail := fmt.Sprintf(" %s x %s @ %s", formatAmount(n.QuantityOrDefault()), n.Unit, formatAmount(n.CostOrZero()))
			usage := " " + n.Usage()
			if n.Status.IsActive() {
				b.WriteString(detail + usage)
			} else {
				b.WriteString(inactiveStyle.Render(detail + usage))
			}
		}
		b.WriteString(dimStyle.Render("  #" + n.Key))
		fmt.Fprintln(w, b.String())
	}
}

// renderCost writes the breakdown table followed by the total.
func renderCost(w io.Writer, roots []*entity.BOMNode, breakdown bool) {
	lines, total := bomtree.Breakdown(roots)
	if breakdown {
		fmt.Fprintf(w, "%-16s %-14s %10s %8s %12s %7s\n", "KEY", "PART", "COST", "QTY", "LINE", "SHARE")
		for _, l := range lines {
			fmt.Fprintf(w, "%-16s %-14s %10s %8s %12s %6.2f%%\n",
				l.Key, l.PartID, l.UnitCost.StringFixed(2), l.Quantity.String(), l.LineCost.StringFixed(2), l.SharePercent)
		}
	}
	fmt.Fprintf(w, "Total cost: %s\n", total.StringFixed(2))
}

func formatAmount(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
