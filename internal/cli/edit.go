package cli

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/adcarbon/internal/tui"
)

// errNotTerminal is returned by interactive commands without a terminal.
var errNotTerminal = errors.New("interactive mode requires a terminal")

// NewEditCmd creates the edit command, an interactive activity editor with a
// live emissions preview.
func NewEditCmd() *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Enter activities interactively",
		Long: `Opens a terminal form for new activities. Typing a quantity into one unit
fills in the channel's other units; the estimated emissions update once
typing pauses.

Keys: tab/shift+tab move between fields, ctrl+n/ctrl+p switch channel,
ctrl+s saves the activity, esc quits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				return errNotTerminal
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				m, err := tui.NewEditorModel(ctx, a.table, a.orch, channel,
					a.cfg.Preview.Debounce(), a.tracker.Add)
				if err != nil {
					return err
				}
				defer m.Close()
				if _, err = tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
					return err
				}
				if n := len(m.Saved()); n > 0 {
					cmd.Printf("Saved %d activities\n", n)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "initial channel (default the first channel)")
	return cmd
}
