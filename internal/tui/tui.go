// Package tui provides a Bubble Tea TUI for browsing activity reports.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/dwell/internal/report"
	"github.com/fakeyudi/dwell/internal/timeline"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// barWidth is the widest share bar, drawn for 100%.
const barWidth = 20

// ── Tab definitions ─────────────────

type tabID int

const (
	tabBuckets tabID = iota
	tabTotals
	tabSummary
	tabCount
)

var tabNames = [tabCount]string{"Buckets", "Totals", "Summary"}

// ReportMsg replaces the report being shown, keeping the active tab.
type ReportMsg struct {
	Report *report.Report
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	report    *report.Report
	filename  string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	// Totals tab: order by name instead of duration.
	sortByName bool
	// Buckets tab: cursor over non-empty buckets and the expanded set.
	cursor   int
	expanded map[int]bool
}

// New creates a new TUI model for the given report and source name.
func New(r *report.Report, filename string) Model {
	return Model{
		report:   r,
		filename: filepath.Base(filename),
		expanded: make(map[int]bool),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabTotals {
				m.sortByName = !m.sortByName
				m.rebuild(tabTotals)
				m.viewports[tabTotals].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabBuckets && m.cursor > 0 {
				m.cursor--
				m.rebuild(tabBuckets)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabBuckets && m.cursor < len(m.visibleBuckets())-1 {
				m.cursor++
				m.rebuild(tabBuckets)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabBuckets && len(m.visibleBuckets()) > 0 {
				if m.expanded[m.cursor] {
					delete(m.expanded, m.cursor)
				} else {
					m.expanded[m.cursor] = true
				}
				m.rebuild(tabBuckets)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case ReportMsg:
		m.report = msg.Report
		if n := len(m.visibleBuckets()); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		if m.ready {
			for i := tabID(0); i < tabCount; i++ {
				m.rebuild(i)
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  dwell  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-3 jump  q quit"
	switch m.activeTab {
	case tabBuckets:
		hint += "  ↑/↓ select  enter expand/collapse"
	case tabTotals:
		order := "by duration"
		if m.sortByName {
			order = "by name"
		}
		hint += "  s sort (" + order + ")"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabBuckets:
		return m.renderBuckets()
	case tabTotals:
		return m.renderTotals()
	case tabSummary:
		return m.renderSummary()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

// visibleBuckets skips buckets without entries, like the text output.
func (m *Model) visibleBuckets() []report.Bucket {
	var out []report.Bucket
	for _, b := range m.report.Buckets {
		if len(b.Entries) > 0 {
			out = append(out, b)
		}
	}
	return out
}

func (m *Model) renderBuckets() string {
	var sb strings.Builder
	buckets := m.visibleBuckets()
	sb.WriteString(heading(fmt.Sprintf("Buckets (%d of %s)", len(buckets), m.report.Width)))
	if len(buckets) == 0 {
		sb.WriteString(dimStyle.Render("  (no activity in range)") + "\n")
		return sb.String()
	}
	for i, b := range buckets {
		toggle := dimStyle.Render("  ▶ ")
		if m.expanded[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		top := b.Entries[0]
		line := fmt.Sprintf("%s%s  %-9s  %s", toggle,
			timeStyle.Render(m.report.Label(b.Start)),
			report.FormatDuration(b.Total),
			dimStyle.Render(fmt.Sprintf("top: %s %d%%", top.Process, top.Percent)))
		if i == m.cursor {
			line = selectedRowStyle.Width(max(m.width-2, 1)).Render(line)
		}
		sb.WriteString(line + "\n")
		if m.expanded[i] {
			for _, e := range b.Entries {
				sb.WriteString("      " + m.entryLine(e) + "\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderTotals() string {
	var sb strings.Builder
	totals := m.report.Totals()
	if m.sortByName {
		sort.SliceStable(totals, func(i, j int) bool {
			if totals[i].Process != totals[j].Process {
				return totals[i].Process < totals[j].Process
			}
			return totals[i].Window < totals[j].Window
		})
	}
	sb.WriteString(heading(fmt.Sprintf("Totals (%d)", len(totals))))
	if len(totals) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, e := range totals {
		sb.WriteString("  " + m.entryLine(e) + "\n")
	}
	return sb.String()
}

func (m *Model) entryLine(e report.Entry) string {
	filled := e.Percent * barWidth / 100
	bar := barStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", barWidth-filled))
	name := e.Process
	if e.Process == timeline.InactiveName {
		name = inactiveStyle.Render(name)
	}
	if m.report.ByWindow && e.Window != "" {
		name += dimStyle.Render("  " + e.Window)
	}
	return fmt.Sprintf("%s %3d%%  %-9s  %s", bar, e.Percent, report.FormatDuration(e.Duration), name)
}

func (m *Model) renderSummary() string {
	r := m.report
	var sb strings.Builder
	sb.WriteString(heading("Report Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("From:", r.Start.Format("2006-01-02 15:04:05 MST"))
	row("To:", r.End.Format("2006-01-02 15:04:05 MST"))
	row("Bucket width:", r.Width)
	grouping := "process"
	if r.ByWindow {
		grouping = "process and window"
	}
	row("Grouped by:", grouping)
	if !r.GeneratedAt.IsZero() {
		row("Generated:", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}

	sb.WriteString("\n")
	sb.WriteString(heading("Counts"))
	row("Buckets:", fmt.Sprintf("%d", len(r.Buckets)))
	row("Active:", fmt.Sprintf("%d", len(m.visibleBuckets())))
	row("Tracked:", report.FormatDuration(r.Tracked()))
	return sb.String()
}

// Run starts the TUI for the given report. Reports received on updates
// replace the one on screen until ctx is done.
func Run(ctx context.Context, r *report.Report, filename string, updates <-chan *report.Report) error {
	p := tea.NewProgram(New(r, filename), tea.WithAltScreen(), tea.WithContext(ctx))
	if updates != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case next, ok := <-updates:
					if !ok {
						return
					}
					p.Send(ReportMsg{Report: next})
				}
			}
		}()
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
