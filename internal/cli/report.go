package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/engine"
	"github.com/rshade/adcarbon/internal/engine/batch"
	"github.com/rshade/adcarbon/internal/greenops"
	"github.com/rshade/adcarbon/internal/logging"
	"github.com/rshade/adcarbon/internal/tui"
)

// reportJSON is the JSON form of a report.
type reportJSON struct {
	engine.Report
	Equivalencies *greenops.Equivalencies `json:"equivalencies,omitempty"`
}

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	var (
		output      string
		interactive bool
		batchSize   int
		noResolve   bool
		failAbove   float64
		exitCode    int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Resolve emissions and print totals",
		Long: `Resolves the emissions of every recorded activity, then prints the total
and the breakdowns by channel, market and scope. Units whose remote
calculation failed use the local estimate and are counted as fallbacks.

With --no-resolve only values already calculated are used and totals that
depend on pending values are marked provisional.`,
		Example: `  adcarbon report
  adcarbon report --output json
  adcarbon report --interactive`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			if batchSize < 1 || batchSize > batch.MaxBatchSize {
				return fmt.Errorf("%w: got %d", batch.ErrInvalidBatchSize, batchSize)
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				if !noResolve {
					if err := resolveAll(ctx, a, batchSize); err != nil {
						return err
					}
				}
				rep, err := a.tracker.Report(ctx)
				if err != nil {
					return err
				}
				if err = renderReportAs(cmd, a, rep, format, interactive); err != nil {
					return err
				}
				return checkThreshold(rep, failAbove, exitCode, a.cfg.Output.TotalPrecision)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the report in a terminal UI")
	cmd.Flags().IntVar(&batchSize, "batch-size", batch.DefaultBatchSize, "activities resolved per batch")
	cmd.Flags().BoolVar(&noResolve, "no-resolve", false, "report without waiting for pending calculations")
	cmd.Flags().Float64Var(&failAbove, "fail-above", 0, "exit with --exit-code when the total exceeds this many kg CO2e")
	cmd.Flags().IntVar(&exitCode, "exit-code", defaultThresholdExitCode, "exit code used by --fail-above")
	return cmd
}

func renderReportAs(cmd *cobra.Command, a *app, rep engine.Report, format string, interactive bool) error {
	switch {
	case interactive:
		return runTotalsTUI(rep)
	case format == formatJSON:
		out := reportJSON{Report: rep}
		if eq, eqErr := greenops.Calculate(rep.Totals.Total); eqErr == nil && !eq.Empty() {
			out.Equivalencies = &eq
		}
		return renderJSON(cmd.OutOrStdout(), out)
	case isTerminal(os.Stdout) && cmd.OutOrStdout() == os.Stdout:
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderTotalsSummary(rep, 0))
		return nil
	default:
		return renderReport(cmd.OutOrStdout(), rep, a.cfg.Output.TotalPrecision)
	}
}

// defaultThresholdExitCode is the exit code of a failed --fail-above check.
const defaultThresholdExitCode = 2

// ThresholdExitError carries the exit code for a report total above the
// --fail-above limit.
type ThresholdExitError struct {
	ExitCode int
	TotalKg  float64
	LimitKg  float64
	// Precision is the number of decimals used in the message.
	Precision int
}

func (e *ThresholdExitError) Error() string {
	return fmt.Sprintf("emissions total %s CO2e exceeds the limit of %s",
		greenops.FormatKg(e.TotalKg, e.Precision), greenops.FormatKg(e.LimitKg, e.Precision))
}

// checkThreshold returns a ThresholdExitError when limit is set and the total
// exceeds it. Provisional totals are checked as they stand.
func checkThreshold(rep engine.Report, limit float64, exitCode, precision int) error {
	if limit <= 0 || rep.Totals.Total <= limit {
		return nil
	}
	return &ThresholdExitError{
		ExitCode:  exitCode,
		TotalKg:   rep.Totals.Total,
		LimitKg:   limit,
		Precision: precision,
	}
}

// resolveAll resolves every activity with the configured concurrency. A
// failure of one activity does not stop the others; failed units fall back
// to the local estimate, so the error is only logged.
func resolveAll(ctx context.Context, a *app, batchSize int) error {
	log := logging.FromContext(ctx)
	progress := func(s batch.Snapshot) {
		log.Debug().Ctx(ctx).
			Str("component", "cli").
			Int("processed", s.ProcessedItems).
			Int("total", s.TotalItems).
			Dur("elapsed", s.Elapsed).
			Msg("resolving activities")
	}
	err := a.tracker.ResolveAll(ctx, batchSize, a.cfg.Compute.MaxConcurrency, progress)
	if err != nil && ctx.Err() == nil {
		log.Warn().Ctx(ctx).Err(err).Msg("some activities could not be resolved")
		return nil
	}
	return err
}

func runTotalsTUI(rep engine.Report) error {
	if !isTerminal(os.Stdout) {
		return errNotTerminal
	}
	_, err := tea.NewProgram(tui.NewTotalsModel(rep), tea.WithAltScreen()).Run()
	return err
}

func renderReport(w io.Writer, rep engine.Report, precision int) error {
	s := rep.Totals
	total := "Total: " + greenops.FormatKg(s.Total, precision) + " CO2e"
	if s.Provisional {
		total += " (provisional)"
	}
	fmt.Fprintln(w, total)
	fmt.Fprintf(w, "Activities: %d\n", s.Activities)
	fmt.Fprintf(w, "Results: %d resolved, %d fallback, %d pending\n", rep.Resolved, rep.Fallbacks, rep.Pending)
	if eq, err := greenops.Calculate(s.Total); err == nil && !eq.Empty() {
		fmt.Fprintln(w, eq.Text())
	}
	if s.Activities == 0 {
		return nil
	}

	scopes := make(map[string]float64, len(s.ByScope))
	for sc, kg := range s.ByScope {
		scopes[sc.String()] = kg
	}
	for _, section := range []struct {
		title  string
		values map[string]float64
	}{
		{"By channel", s.ByChannel},
		{"By market", s.ByMarket},
		{"By scope", scopes},
	} {
		fmt.Fprintf(w, "\n%s\n", section.title)
		if err := renderBreakdown(w, section.values, precision); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "ID\tChannel\tMarket\tDate\tkg CO2e\tStatus")
	fmt.Fprintln(tw, "--\t-------\t------\t----\t-------\t------")
	for _, ae := range rep.Activities {
		act := ae.Activity
		date := ""
		if !act.Date.IsZero() {
			date = act.Date.Format(activity.DateLayout)
		}
		kg := greenops.FormatFloat(ae.KgCO2e, precision)
		if ae.Provisional {
			kg += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			act.ID, act.Channel, act.Market, date, kg, activityStatus(ae))
	}
	return tw.Flush()
}

func renderBreakdown(w io.Writer, values map[string]float64, precision int) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "  %s\t%s\n", k, greenops.FormatKg(values[k], precision))
	}
	return tw.Flush()
}

// activityStatus summarizes the result statuses of one activity.
func activityStatus(ae engine.ActivityEmissions) string {
	if ae.Provisional || len(ae.Results) < len(ae.Activity.Units) {
		return engine.StatusPending.String()
	}
	for _, r := range ae.Results {
		if r.Status == engine.StatusFallback {
			return engine.StatusFallback.String()
		}
	}
	return engine.StatusResolved.String()
}
