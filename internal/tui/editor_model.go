package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/conversion"
	"github.com/rshade/adcarbon/internal/engine"
	"github.com/rshade/adcarbon/internal/greenops"
	"github.com/rshade/adcarbon/internal/logging"
	"github.com/rshade/adcarbon/internal/reconcile"
)

var (
	errInvalidScope = errors.New("scope must be 1, 2 or 3")
	errNoSave       = errors.New("saving is not available")
)

// SaveFunc stores a committed activity and returns it as stored.
type SaveFunc func(ctx context.Context, a activity.Activity) (activity.Activity, error)

type fieldKind int

const (
	fieldMarket fieldKind = iota
	fieldDate
	fieldScope
	fieldUnit
)

type field struct {
	kind  fieldKind
	unit  string
	label string
	input textinput.Model
}

// previewMsg carries a published preview into the update loop.
type previewMsg engine.PreviewResult

// Editor layout.
const (
	labelWidth   = 22
	inputWidth   = 16
	defaultScope = activity.Scope3
)

// EditorModel is the Bubble Tea model for entering a new activity. Every
// quantity edit runs one reconciliation pass over the channel's units and
// schedules a debounced emission preview.
type EditorModel struct {
	ctx      context.Context
	table    *conversion.Table
	channels []string
	draft    *reconcile.Draft
	fields   []field
	focus    int

	preview  *engine.Preview
	previews chan engine.PreviewResult
	done     chan struct{}
	last     *engine.PreviewResult

	save   SaveFunc
	now    func() time.Time
	status string
	err    error
	saved  []activity.Activity

	width    int
	quitting bool
}

// NewEditorModel starts an editor on channel. Previews resolve through orch
// after delay of quiet input; save is called on ctrl+s.
func NewEditorModel(
	ctx context.Context,
	table *conversion.Table,
	orch *engine.Orchestrator,
	channel string,
	delay time.Duration,
	save SaveFunc,
) (*EditorModel, error) {
	m := &EditorModel{
		ctx:      ctx,
		table:    table,
		channels: table.Channels(),
		previews: make(chan engine.PreviewResult, 1),
		done:     make(chan struct{}),
		save:     save,
		now:      time.Now,
	}
	if channel == "" && len(m.channels) > 0 {
		channel = m.channels[0]
	}

	log := logging.ComponentLogger(*logging.FromContext(ctx), "editor")
	draft, err := reconcile.NewDraft(table, channel,
		reconcile.WithFieldWriter(m.writeField),
		reconcile.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	m.draft = draft
	m.draft.Scope = defaultScope
	m.draft.Date = truncateDay(m.now())

	m.preview = engine.NewPreview(orch, delay, m.publish)
	m.fields = []field{
		newField(fieldMarket, "", "Market", ""),
		newField(fieldDate, "", "Date (YYYY-MM-DD)", m.draft.Date.Format(activity.DateLayout)),
		newField(fieldScope, "", "Scope (1-3)", strconv.Itoa(int(defaultScope))),
	}
	m.rebuildUnitFields()
	m.setFocus(len(m.fields) - len(m.draft.Reconciler().Units()))
	return m, nil
}

func newField(kind fieldKind, unit, label, value string) field {
	in := textinput.New()
	in.Prompt = ""
	in.Width = inputWidth
	in.SetValue(value)
	return field{kind: kind, unit: unit, label: label, input: in}
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// publish runs on the preview goroutine.
func (m *EditorModel) publish(r engine.PreviewResult) {
	for {
		select {
		case m.previews <- r:
			return
		case <-m.done:
			return
		default:
		}
		// Replace an unread older preview.
		select {
		case <-m.previews:
		default:
		}
	}
}

func (m *EditorModel) waitForPreview() tea.Cmd {
	previews, done := m.previews, m.done
	return func() tea.Msg {
		select {
		case r := <-previews:
			return previewMsg(r)
		case <-done:
			return nil
		}
	}
}

// writeField is the reconciler's FieldWriter. It only changes field text.
func (m *EditorModel) writeField(unit, raw string) {
	for i := range m.fields {
		if m.fields[i].kind == fieldUnit && m.fields[i].unit == unit {
			m.fields[i].input.SetValue(raw)
			return
		}
	}
}

// rebuildUnitFields replaces the unit fields with the current channel's.
func (m *EditorModel) rebuildUnitFields() {
	meta := make([]field, 0, len(m.fields))
	for _, f := range m.fields {
		if f.kind != fieldUnit {
			meta = append(meta, f)
		}
	}
	for _, u := range m.draft.Reconciler().Units() {
		meta = append(meta, newField(fieldUnit, u, m.draft.Label(u), ""))
	}
	m.fields = meta
	if m.focus >= len(m.fields) {
		m.focus = len(m.fields) - 1
	}
}

func (m *EditorModel) setFocus(i int) {
	if len(m.fields) == 0 {
		return
	}
	i = (i + len(m.fields)) % len(m.fields)
	m.fields[m.focus].input.Blur()
	m.focus = i
	m.fields[m.focus].input.Focus()
}

// Init implements tea.Model.
func (m *EditorModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForPreview())
}

// Update implements tea.Model.
func (m *EditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case previewMsg:
		r := engine.PreviewResult(msg)
		if r.Generation == m.preview.Current() {
			m.last = &r
		}
		return m, m.waitForPreview()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.fields[m.focus].input, cmd = m.fields[m.focus].input.Update(msg)
	return m, cmd
}

func (m *EditorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quit()
		return m, tea.Quit
	case "tab", "down", "enter":
		m.setFocus(m.focus + 1)
		return m, nil
	case "shift+tab", "up":
		m.setFocus(m.focus - 1)
		return m, nil
	case "ctrl+n":
		m.switchChannel(1)
		return m, nil
	case "ctrl+p":
		m.switchChannel(-1)
		return m, nil
	case "ctrl+s":
		m.commit()
		return m, nil
	}

	f := &m.fields[m.focus]
	// Typing over a derived value replaces it.
	if f.kind == fieldUnit && msg.Type == tea.KeyRunes {
		if e, ok := m.draft.Reconciler().Entry(f.unit); ok && e.State == reconcile.StateDerived {
			f.input.SetValue("")
		}
	}
	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if after := f.input.Value(); after != before {
		m.fieldChanged(m.focus, after)
	}
	return m, cmd
}

// fieldChanged applies the text of field i to the draft and reschedules the
// preview.
func (m *EditorModel) fieldChanged(i int, value string) {
	f := m.fields[i]
	m.err = nil
	switch f.kind {
	case fieldUnit:
		if _, err := m.draft.Edit(f.unit, value); err != nil {
			m.err = err
		}
	case fieldMarket:
		m.draft.Market = strings.TrimSpace(value)
	case fieldDate:
		m.draft.Date = time.Time{}
		if value != "" {
			d, err := time.Parse(activity.DateLayout, value)
			if err != nil {
				m.err = fmt.Errorf("date must be %s", activity.DateLayout)
			} else {
				m.draft.Date = d
			}
		}
	case fieldScope:
		n, _ := strconv.Atoi(strings.TrimSpace(value))
		m.draft.Scope = activity.Scope(n)
		if !m.draft.Scope.Valid() {
			m.err = errInvalidScope
		}
	}
	m.schedulePreview()
}

func (m *EditorModel) schedulePreview() {
	a, err := m.draft.Build()
	if err != nil {
		m.preview.Cancel()
		m.last = nil
		return
	}
	m.preview.Update(m.ctx, a)
}

func (m *EditorModel) switchChannel(step int) {
	if len(m.channels) == 0 {
		return
	}
	cur := 0
	for i, c := range m.channels {
		if c == m.draft.Channel() {
			cur = i
			break
		}
	}
	next := m.channels[(cur+step+len(m.channels))%len(m.channels)]
	if err := m.draft.SelectChannel(next); err != nil {
		m.err = err
		return
	}
	m.rebuildUnitFields()
	m.setFocus(len(m.fields) - len(m.draft.Reconciler().Units()))
	m.status = ""
	m.schedulePreview()
}

func (m *EditorModel) commit() {
	a, err := m.draft.Build()
	if err != nil {
		m.err = err
		return
	}
	if m.save == nil {
		m.err = errNoSave
		return
	}
	stored, err := m.save(m.ctx, a)
	if err != nil {
		m.err = err
		return
	}
	m.saved = append(m.saved, stored)
	m.err = nil
	m.status = fmt.Sprintf("Saved %s", stored.ID)
	m.draft.Reconciler().Reset()
	for i := range m.fields {
		if m.fields[i].kind == fieldUnit {
			m.fields[i].input.SetValue("")
		}
	}
	m.preview.Cancel()
	m.last = nil
}

func (m *EditorModel) quit() {
	if m.quitting {
		return
	}
	m.quitting = true
	m.preview.Stop()
	close(m.done)
}

// Close releases the preview. It is safe to call after the program exits.
func (m *EditorModel) Close() { m.quit() }

// Saved returns the activities stored during the session.
func (m *EditorModel) Saved() []activity.Activity { return m.saved }

// Value returns the text of the unit field for unit.
func (m *EditorModel) Value(unit string) string {
	for _, f := range m.fields {
		if f.kind == fieldUnit && f.unit == unit {
			return f.input.Value()
		}
	}
	return ""
}

// Channel returns the draft's channel.
func (m *EditorModel) Channel() string { return m.draft.Channel() }

// Preview returns the latest current preview, if any.
func (m *EditorModel) Preview() (engine.PreviewResult, bool) {
	if m.last == nil {
		return engine.PreviewResult{}, false
	}
	return *m.last, true
}

// Err returns the last input error.
func (m *EditorModel) Err() error { return m.err }

// View implements tea.Model.
func (m *EditorModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("New activity: " + m.draft.Channel()))
	b.WriteString("\n\n")

	for i, f := range m.fields {
		cursor := "  "
		if i == m.focus {
			cursor = "> "
		}
		b.WriteString(cursor)
		b.WriteString(LabelStyle.Render(fmt.Sprintf("%-*s", labelWidth, f.label)))
		b.WriteString(f.input.View())
		if f.kind == fieldUnit {
			if e, ok := m.draft.Reconciler().Entry(f.unit); ok && e.State == reconcile.StateDerived {
				b.WriteString(DerivedStyle.Render("  derived"))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderPreview())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(ErrorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(OKStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(SubtleStyle.Render("tab/↑↓ move • ctrl+n/p channel • ctrl+s save • esc quit"))
	return b.String()
}

func (m *EditorModel) renderPreview() string {
	if len(m.draft.Reconciler().Values()) == 0 {
		return InfoStyle.Render("Enter a quantity to preview emissions.")
	}
	if m.last == nil || m.last.Generation != m.preview.Current() {
		return RenderLoadingIndicator()
	}
	out := LabelStyle.Render("Preview: ") + ValueStyle.Render(greenops.FormatKg(m.last.KgCO2e, kgPrecision)+" CO2e")
	for _, r := range m.last.Results {
		if r.Status == engine.StatusFallback {
			out += SubtleStyle.Render("  (includes local estimates)")
			break
		}
	}
	return out
}
