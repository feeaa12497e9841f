package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/conversion"
	"github.com/rshade/adcarbon/internal/emission"
	"github.com/rshade/adcarbon/internal/engine"
	"github.com/rshade/adcarbon/internal/reconcile"
)

func newEditor(t *testing.T, save SaveFunc) *EditorModel {
	t.Helper()
	est, err := emission.NewFactorTable(map[string]float64{"km": 0.5, "kWh": 0.1}, 0)
	require.NoError(t, err)
	orch := engine.New(nil, est)
	m, err := NewEditorModel(context.Background(), conversion.Default(), orch, "Ad Production", time.Millisecond, save)
	require.NoError(t, err)
	t.Cleanup(func() {
		m.Close()
		orch.Close()
	})
	return m
}

func typeText(m *EditorModel, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func press(m *EditorModel, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

// awaitPreview feeds published previews into m until a current one lands.
func awaitPreview(t *testing.T, m *EditorModel) engine.PreviewResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		msgs := make(chan tea.Msg, 1)
		go func() { msgs <- m.waitForPreview()() }()
		select {
		case msg := <-msgs:
			m.Update(msg)
			if p, ok := m.Preview(); ok {
				return p
			}
		case <-deadline:
			t.Fatal("no current preview published")
		}
	}
}

func TestEditorReconcilesOnEdit(t *testing.T) {
	m := newEditor(t, nil)

	typeText(m, "100")
	assert.Equal(t, "100", m.Value("km"))
	assert.Equal(t, "20.00", m.Value("kWh"))
	assert.Empty(t, m.Value("render_hours"), "no factor between km and render_hours")
	assert.Contains(t, m.View(), "derived")

	// Typing over a derived value replaces it and makes the unit manual.
	press(m, tea.KeyTab)
	typeText(m, "6")
	assert.Equal(t, "6", m.Value("kWh"))
	assert.Equal(t, "4.00", m.Value("render_hours"))
	assert.Equal(t, []string{"km", "kWh"}, m.draft.Reconciler().Manual())
}

func TestEditorClearingLastManualEmptiesDerived(t *testing.T) {
	m := newEditor(t, nil)
	typeText(m, "5")
	require.Equal(t, "1.00", m.Value("kWh"))

	press(m, tea.KeyBackspace)
	assert.Empty(t, m.Value("km"))
	assert.Empty(t, m.Value("kWh"))
	_, ok := m.Preview()
	assert.False(t, ok)
}

func TestEditorPreview(t *testing.T) {
	m := newEditor(t, nil)
	typeText(m, "100")

	p := awaitPreview(t, m)
	assert.InDelta(t, 52.0, p.KgCO2e, 1e-9)
	assert.Len(t, p.Results, 2)
	assert.Contains(t, m.View(), "52.00 kg")
}

func TestEditorSwitchChannelClears(t *testing.T) {
	m := newEditor(t, nil)
	typeText(m, "100")

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, "Digital Display", m.Channel())
	assert.Empty(t, m.draft.Reconciler().Values())
	assert.Empty(t, m.Value("km"))

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, "Ad Production", m.Channel())
}

func TestEditorCommit(t *testing.T) {
	var got []activity.Activity
	save := func(_ context.Context, a activity.Activity) (activity.Activity, error) {
		a.ID = "act-1"
		got = append(got, a)
		return a, nil
	}
	m := newEditor(t, save)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.ErrorIs(t, m.Err(), reconcile.ErrEmptyDraft)

	typeText(m, "100")
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NoError(t, m.Err())
	require.Len(t, got, 1)
	assert.Equal(t, "Ad Production", got[0].Channel)
	assert.Equal(t, activity.Scope3, got[0].Scope)
	assert.InDelta(t, 20.0, got[0].Units["kWh"].Value, 1e-9)
	assert.Len(t, m.Saved(), 1)
	assert.Empty(t, m.Value("km"), "commit resets the quantities")
	assert.Contains(t, m.View(), "Saved act-1")
}

func TestEditorMetaValidation(t *testing.T) {
	m := newEditor(t, nil)

	press(m, tea.KeyShiftTab) // scope
	press(m, tea.KeyBackspace)
	typeText(m, "7")
	require.ErrorIs(t, m.Err(), errInvalidScope)

	press(m, tea.KeyBackspace)
	typeText(m, "2")
	require.NoError(t, m.Err())
	assert.Equal(t, activity.Scope2, m.draft.Scope)
}

func TestEditorQuit(t *testing.T) {
	m := newEditor(t, nil)
	cmd := press(m, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}
