package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabspeicher/internal/projection"
	"github.com/lotas/tabspeicher/internal/types"
)

// row is one rendered line: either a group header or a record.
type row struct {
	header string
	record *types.Record
}

// flatten turns a projection into the line-by-line list the cursor
// moves over. Header rows are not selectable.
func flatten(p projection.Projection) []row {
	if p.Flat != nil {
		rows := make([]row, 0, len(p.Flat))
		for i := range p.Flat {
			rows = append(rows, row{record: &p.Flat[i]})
		}
		return rows
	}
	var rows []row
	for gi := range p.Groups {
		g := &p.Groups[gi]
		rows = append(rows, row{header: g.Label})
		for ri := range g.Records {
			rows = append(rows, row{record: &g.Records[ri]})
		}
	}
	return rows
}

var (
	topBarStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	urlStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	bottomStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
)

var modeNames = map[types.ViewMode]string{
	types.ViewByDate:   "date",
	types.ViewByTitle:  "title",
	types.ViewByDomain: "domain",
}

func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press 'q' to quit.\n", m.err)
	}

	topBar := topBarStyle.Render(fmt.Sprintf("tabspeicher  %d saved · view: %s", len(m.records), modeNames[m.mode]))

	searchLine := ""
	if m.searching || m.search.Value() != "" {
		searchLine = " " + m.search.View()
	}

	list := m.viewList()

	status := statusStyle.Render(m.status)

	bottom := "↑↓/jk navigate · d/t/o view · / search · x delete · e export · q quit"
	bottomBar := bottomStyle.Render(bottom)

	return lipgloss.JoinVertical(lipgloss.Left, topBar, searchLine, list, status, bottomBar)
}

func (m Model) viewList() string {
	if len(m.rows) == 0 {
		if m.search.Value() != "" {
			return "\n  No tabs match your search.\n"
		}
		return "\n  No saved tabs yet. Save some from the extension or run 'tabspeicher capture'.\n"
	}

	h := m.listHeight()
	if h <= 0 {
		h = len(m.rows)
	}
	end := m.offset + h
	if end > len(m.rows) {
		end = len(m.rows)
	}

	out := ""
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		if r.record == nil {
			out += " " + headerStyle.Render(r.header) + "\n"
			continue
		}
		line := m.recordLine(r.record)
		if i == m.cursor {
			out += selectedStyle.Render(" ▸ "+line) + "\n"
		} else {
			out += "   " + line + "\n"
		}
	}
	return out
}

// recordLine fits a record into the available width. The URL gives way
// first but stays partially visible; the title is cut only when it
// alone overflows.
func (m Model) recordLine(rec *types.Record) string {
	title := rec.Title
	if title == "" {
		title = types.UntitledTab
	}
	url := rec.URL
	if m.width > 6 {
		max := m.width - 6
		tw := lipgloss.Width(title)
		if tw >= max {
			return truncate(title, max)
		}
		avail := max - tw - 2
		if avail < 4 {
			return title
		}
		if lipgloss.Width(url) > avail {
			url = truncate(url, avail)
		}
	}
	return title + "  " + urlStyle.Render(url)
}

func truncate(s string, max int) string {
	if max <= 1 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
