package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/engine"
	"github.com/rshade/adcarbon/internal/greenops"
)

// Layout constants.
const (
	borderPadding   = 2
	shortIDLen      = 10
	totalsMinHeight = 5
	kgPrecision     = 2
)

// RenderTotalsSummary renders a boxed summary of rep: the grand total, the
// per-channel and per-scope breakdowns, result statistics and an
// equivalency line.
func RenderTotalsSummary(rep engine.Report, width int) string {
	if rep.Totals.Activities == 0 {
		return InfoStyle.Render("No activities recorded.")
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("EMISSIONS SUMMARY"))
	b.WriteString("\n")

	b.WriteString(LabelStyle.Render("Total:      "))
	b.WriteString(ValueStyle.Render(greenops.FormatKg(rep.Totals.Total, kgPrecision) + " CO2e"))
	if rep.Totals.Provisional {
		b.WriteString(DerivedStyle.Render("  (provisional)"))
	}
	b.WriteString(LabelStyle.Render("    Activities: "))
	b.WriteString(ValueStyle.Render(strconv.Itoa(rep.Totals.Activities)))
	b.WriteString("\n")

	b.WriteString(LabelStyle.Render(breakdownLine(rep.Totals.Total, rep.Totals.ByChannel)))
	b.WriteString("\n")

	scopes := make([]string, 0, len(activity.Scopes()))
	for _, s := range activity.Scopes() {
		scopes = append(scopes, fmt.Sprintf("%s: %s", s, greenops.FormatKg(rep.Totals.ByScope[s], kgPrecision)))
	}
	b.WriteString(LabelStyle.Render(strings.Join(scopes, "  ")))
	b.WriteString("\n")

	b.WriteString(LabelStyle.Render(fmt.Sprintf("Results: %d resolved, %d fallback, %d pending",
		rep.Resolved, rep.Fallbacks, rep.Pending)))

	if eq, err := greenops.Calculate(rep.Totals.Total); err == nil && !eq.Empty() {
		b.WriteString("\n")
		b.WriteString(SubtleStyle.Render(eq.Text()))
	}

	if width <= borderPadding {
		return BoxStyle.Render(b.String())
	}
	return BoxStyle.Width(width - borderPadding).Render(b.String())
}

// breakdownLine lists channels by descending share.
func breakdownLine(total float64, byChannel map[string]float64) string {
	type share struct {
		name string
		kg   float64
	}
	shares := make([]share, 0, len(byChannel))
	for name, kg := range byChannel {
		shares = append(shares, share{name, kg})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].kg != shares[j].kg {
			return shares[i].kg > shares[j].kg
		}
		return shares[i].name < shares[j].name
	})

	parts := make([]string, 0, len(shares))
	for _, s := range shares {
		pct := 0.0
		if total > 0 {
			pct = s.kg / total * 100 //nolint:mnd // percentage
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%.1f%%)", s.name, greenops.FormatKg(s.kg, kgPrecision), pct))
	}
	return strings.Join(parts, "  ")
}

// NewTotalsTable creates a table with one row per activity.
func NewTotalsTable(rep engine.Report, height int) table.Model {
	columns := []table.Column{
		{Title: "Activity", Width: 12}, //nolint:mnd // Column width.
		{Title: "Channel", Width: 18},  //nolint:mnd // Column width.
		{Title: "Market", Width: 10},   //nolint:mnd // Column width.
		{Title: "Scope", Width: 8},     //nolint:mnd // Column width.
		{Title: "Date", Width: 11},     //nolint:mnd // Column width.
		{Title: "kg CO2e", Width: 14},  //nolint:mnd // Column width.
		{Title: "Status", Width: 12},   //nolint:mnd // Column width.
	}

	rows := make([]table.Row, len(rep.Activities))
	for i, ae := range rep.Activities {
		rows[i] = ActivityRow(ae)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(height, totalsMinHeight)),
	)
	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = TableSelectedStyle
	t.SetStyles(s)
	return t
}

// ActivityRow renders one activity for the totals table.
func ActivityRow(ae engine.ActivityEmissions) table.Row {
	a := ae.Activity
	id := a.ID
	if len(id) > shortIDLen {
		id = id[:shortIDLen]
	}
	date := ""
	if !a.Date.IsZero() {
		date = a.Date.Format(activity.DateLayout)
	}
	return table.Row{
		id,
		a.Channel,
		a.Market,
		strconv.Itoa(int(a.Scope)),
		date,
		greenops.FormatFloat(ae.KgCO2e, kgPrecision),
		resultStatus(ae),
	}
}

// resultStatus summarizes the unit results of one activity.
func resultStatus(ae engine.ActivityEmissions) string {
	if ae.Provisional {
		return engine.StatusPending.String()
	}
	for _, r := range ae.Results {
		if r.Status == engine.StatusFallback {
			return engine.StatusFallback.String()
		}
	}
	return engine.StatusResolved.String()
}

// TotalsModel is a read-only browser over a report.
type TotalsModel struct {
	report engine.Report
	table  table.Model
	width  int
	height int
}

// NewTotalsModel returns a TotalsModel for rep.
func NewTotalsModel(rep engine.Report) *TotalsModel {
	const defaultWidth, defaultHeight = 100, 20
	return &TotalsModel{
		report: rep,
		table:  NewTotalsTable(rep, defaultHeight-totalsMinHeight),
		width:  defaultWidth,
		height: defaultHeight,
	}
}

// Init implements tea.Model.
func (m *TotalsModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *TotalsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		const summaryLines = 9
		m.table.SetHeight(max(m.height-summaryLines, totalsMinHeight))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *TotalsModel) View() string {
	return RenderTotalsSummary(m.report, m.width) + "\n" +
		m.table.View() + "\n" +
		SubtleStyle.Render("↑/↓ navigate • q quit")
}
