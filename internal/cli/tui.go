package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/boardroute/pkg/layout"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// NetBrowserModel - Interactive routed net browser
// =============================================================================

// NetBrowserModel is the bubbletea model for browsing the nets of a layout.
type NetBrowserModel struct {
	Layout   layout.Layout
	Nets     []layout.RoutedNet // visible nets
	Cursor   int
	Offset   int
	Height   int
	Detail   bool // show the selected net instead of the list
	Problems bool // only partial and unrouted nets
}

// NewNetBrowserModel creates a browser over the nets of l.
func NewNetBrowserModel(l layout.Layout) NetBrowserModel {
	m := NetBrowserModel{Layout: l, Height: 15}
	m.filter()
	return m
}

// filter recomputes the visible nets and clamps the cursor.
func (m *NetBrowserModel) filter() {
	m.Nets = m.Nets[:0]
	for _, n := range m.Layout.Nets {
		if m.Problems && n.Status == layout.StatusRouted {
			continue
		}
		m.Nets = append(m.Nets, n)
	}
	if m.Cursor >= len(m.Nets) {
		m.Cursor = max(len(m.Nets)-1, 0)
	}
	if m.Offset > m.Cursor {
		m.Offset = m.Cursor
	}
}

func (m NetBrowserModel) Init() tea.Cmd {
	return nil
}

func (m NetBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if !m.Detail {
				return m, tea.Quit
			}
			m.Detail = false
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Nets)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Nets) > 0 {
				m.Detail = !m.Detail
			}
		case "u":
			m.Problems = !m.Problems
			m.Nets = make([]layout.RoutedNet, 0, len(m.Layout.Nets))
			m.filter()
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m NetBrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Routed Nets"))
	b.WriteString("\n")
	b.WriteString(statsLine(m.Layout.Stats, false))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  u problems only  q quit"))
	b.WriteString("\n\n")

	if len(m.Nets) == 0 {
		b.WriteString(listDimStyle.Render("  no nets to show"))
		return b.String()
	}
	if m.Detail {
		b.WriteString(netDetail(m.Nets[m.Cursor]))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Nets))
	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		n := m.Nets[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			n.Name,
			string(n.Status),
			fmt.Sprintf("%d/%d", n.RoutedEdges, n.Edges),
			strconv.FormatFloat(n.LengthMM, 'f', 2, 64),
			strconv.Itoa(len(n.Vias)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Net", "Status", "Edges", "Length mm", "Vias").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Nets) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col == 2 {
				base = statusStyle(m.Nets[idx].Status)
			}
			if idx == m.Cursor {
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Nets))))
	return b.String()
}

// netDetail renders the copper and failures of one net.
func netDetail(n layout.RoutedNet) string {
	var b strings.Builder
	b.WriteString(statusStyle(n.Status).Bold(true).Render(n.Name + "  " + string(n.Status)))
	b.WriteString("\n\n")

	perLayer := map[int]float64{}
	layers := []int{}
	for _, s := range n.Segments {
		if _, ok := perLayer[s.Layer]; !ok {
			layers = append(layers, s.Layer)
		}
		perLayer[s.Layer] += s.LengthMM
	}
	fmt.Fprintf(&b, "  edges     %d/%d\n", n.RoutedEdges, n.Edges)
	fmt.Fprintf(&b, "  length    %.2f mm\n", n.LengthMM)
	if n.MatchGroup != "" {
		fmt.Fprintf(&b, "  group     %s\n", n.MatchGroup)
	}
	for _, l := range layers {
		fmt.Fprintf(&b, "  layer %-3d %.2f mm\n", l, perLayer[l])
	}
	for _, v := range n.Vias {
		fmt.Fprintf(&b, "  via       (%.2f, %.2f) %d→%d\n", v.Position.X, v.Position.Y, v.From, v.To)
	}
	for _, f := range n.Failures {
		b.WriteString("  " + styleIconError.Render(iconError) + " " + f + "\n")
	}
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("esc back"))
	return b.String()
}

// browseNets runs the interactive net browser.
func browseNets(l layout.Layout) error {
	_, err := tea.NewProgram(NewNetBrowserModel(l)).Run()
	return err
}
