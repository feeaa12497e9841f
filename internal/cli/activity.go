package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/cli/pagination"
	"github.com/rshade/adcarbon/internal/engine"
	"github.com/rshade/adcarbon/internal/greenops"
	"github.com/rshade/adcarbon/internal/reconcile"
)

// activityFlags are the fields shared by add and update.
type activityFlags struct {
	channel      string
	market       string
	scope        int
	date         string
	activityType string
	campaign     string
	units        []string
	output       string
}

func (f *activityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.channel, "channel", "", "marketing channel, e.g. \"Ad Production\"")
	cmd.Flags().StringVar(&f.market, "market", "", "market the activity ran in")
	cmd.Flags().IntVar(&f.scope, "scope", int(activity.Scope3), "GHG scope (1, 2 or 3)")
	cmd.Flags().StringVar(&f.date, "date", "", "activity date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.activityType, "type", "", "activity type sent to the compute service (default the channel)")
	cmd.Flags().StringVar(&f.campaign, "campaign", "", "campaign name")
	cmd.Flags().StringArrayVar(&f.units, "unit", nil, "unit quantity as unit=value; repeat for several units")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output format: table or json")
}

// buildActivity reconciles the entered units against the channel and returns
// an activity without ID or timestamps.
func buildActivity(a *app, f activityFlags, now time.Time) (activity.Activity, error) {
	values, err := parseUnitFlags(f.units)
	if err != nil {
		return activity.Activity{}, err
	}
	date, err := parseDate(f.date, now)
	if err != nil {
		return activity.Activity{}, err
	}
	d, err := reconcile.NewDraft(a.table, f.channel)
	if err != nil {
		return activity.Activity{}, err
	}
	d.Meta = reconcile.Meta{
		Market:       f.market,
		Date:         date,
		Scope:        activity.Scope(f.scope),
		ActivityType: f.activityType,
		Campaign:     f.campaign,
	}
	if err = d.Apply(values); err != nil {
		return activity.Activity{}, err
	}
	return d.Build()
}

// NewActivityAddCmd creates the activity add command.
func NewActivityAddCmd() *cobra.Command {
	var f activityFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new activity",
		Long: `Records a new marketing activity. Quantities given with --unit are entered
in order of unit name; every other unit of the channel is derived from them
through the conversion table.`,
		Example: `  adcarbon activity add --channel "Ad Production" --market UK --unit km=120
  adcarbon activity add --channel Print --market DE --scope 3 --unit copies=5000 --campaign spring`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(f.output)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				built, err := buildActivity(a, f, time.Now())
				if err != nil {
					return err
				}
				stored, err := a.tracker.Add(ctx, built)
				if err != nil {
					return err
				}
				return printActivityResolved(ctx, cmd.OutOrStdout(), a, stored, format, "Added")
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

// NewActivityUpdateCmd creates the activity update command.
func NewActivityUpdateCmd() *cobra.Command {
	var f activityFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace an activity",
		Long: `Replaces an activity. Flags that are not given keep their stored value.
Giving any --unit re-enters the quantities and re-derives the channel's other
units. Every cached emission result of the activity is discarded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(f.output)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				prev, err := a.tracker.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("activity %s: %w", args[0], err)
				}
				next, err := mergeActivity(cmd, a, prev, f)
				if err != nil {
					return err
				}
				stored, err := a.tracker.Update(ctx, next)
				if err != nil {
					return err
				}
				return printActivityResolved(ctx, cmd.OutOrStdout(), a, stored, format, "Updated")
			})
		},
	}
	f.register(cmd)
	return cmd
}

// mergeActivity overlays the changed flags on prev.
func mergeActivity(cmd *cobra.Command, a *app, prev activity.Activity, f activityFlags) (activity.Activity, error) {
	changed := cmd.Flags().Changed
	if !changed("channel") {
		f.channel = prev.Channel
	}
	if !changed("market") {
		f.market = prev.Market
	}
	if !changed("scope") {
		f.scope = int(prev.Scope)
	}
	if !changed("date") && !prev.Date.IsZero() {
		f.date = prev.Date.Format(activity.DateLayout)
	}
	if !changed("type") {
		f.activityType = prev.ActivityType
	}
	if !changed("campaign") {
		f.campaign = prev.Campaign
	}

	if changed("unit") || f.channel != prev.Channel {
		next, err := buildActivity(a, f, time.Now())
		if err != nil {
			return activity.Activity{}, err
		}
		next.ID = prev.ID
		return next, nil
	}

	next := prev.Clone()
	date, err := parseDate(f.date, time.Now())
	if err != nil {
		return activity.Activity{}, err
	}
	next.Market = f.market
	next.Scope = activity.Scope(f.scope)
	next.Date = date
	next.ActivityType = f.activityType
	next.Campaign = f.campaign
	return next, nil
}

// printActivityResolved waits for the activity's emissions and prints them.
func printActivityResolved(
	ctx context.Context,
	w io.Writer,
	a *app,
	act activity.Activity,
	format string,
	verb string,
) error {
	results, err := a.orch.ResolveActivity(ctx, act)
	if err != nil {
		return err
	}
	kg, _ := a.orch.ActivityTotal(act)
	view := activityView{Activity: act, KgCO2e: kg, Results: results}
	if format == formatJSON {
		return renderJSON(w, view)
	}
	fmt.Fprintf(w, "%s activity %s\n", verb, act.ID)
	return renderActivityDetail(w, a, view)
}

// activityView is one activity with its emissions.
type activityView struct {
	activity.Activity
	KgCO2e      float64         `json:"kgCO2e"`
	Provisional bool            `json:"provisional,omitempty"`
	Results     []engine.Result `json:"results"`
}

func renderActivityDetail(w io.Writer, a *app, v activityView) error {
	fmt.Fprintf(w, "Channel:  %s\n", v.Channel)
	fmt.Fprintf(w, "Market:   %s\n", v.Market)
	fmt.Fprintf(w, "Scope:    %d\n", int(v.Scope))
	if !v.Date.IsZero() {
		fmt.Fprintf(w, "Date:     %s\n", v.Date.Format(activity.DateLayout))
	}
	if v.Campaign != "" {
		fmt.Fprintf(w, "Campaign: %s\n", v.Campaign)
	}
	fmt.Fprintln(w)

	byUnit := make(map[string]engine.Result, len(v.Results))
	for _, r := range v.Results {
		byUnit[r.Key.Unit] = r
	}

	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "Unit\tLabel\tQuantity\tkg CO2e\tStatus")
	fmt.Fprintln(tw, "----\t-----\t--------\t-------\t------")
	for _, u := range v.UnitNames() {
		q := v.Units[u]
		kg, status := "-", engine.StatusPending.String()
		if r, ok := byUnit[u]; ok {
			kg, status = greenops.FormatFloat(r.KgCO2e, kgPrecision(a)), r.Status.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u, q.Label, formatQuantity(q.Value), kg, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	total := "Total:    " + greenops.FormatKg(v.KgCO2e, kgPrecision(a)) + " CO2e"
	if v.Provisional {
		total += " (provisional)"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, total)
	return nil
}

func kgPrecision(a *app) int { return a.cfg.Output.TotalPrecision }

// activitySorter orders activity list rows.
//
//nolint:gochecknoglobals // read-only sort table
var activitySorter = pagination.NewFieldSorter(map[string]func(a, b activityView) bool{
	"id":      func(a, b activityView) bool { return a.ID < b.ID },
	"date":    func(a, b activityView) bool { return a.Date.Before(b.Date) },
	"channel": func(a, b activityView) bool { return a.Channel < b.Channel },
	"market":  func(a, b activityView) bool { return a.Market < b.Market },
	"scope":   func(a, b activityView) bool { return a.Scope < b.Scope },
	"kg":      func(a, b activityView) bool { return a.KgCO2e < b.KgCO2e },
})

// NewActivityListCmd creates the activity list command.
func NewActivityListCmd() *cobra.Command {
	var (
		output  string
		filters []string
		page    pagination.PaginationParams
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded activities",
		Long: `Lists activities with the emissions currently known. Values still being
calculated are marked with *.

Filters are key=value with keys channel, market, scope, campaign, type, from
and to (dates YYYY-MM-DD, inclusive). Repeated filters must all match.`,
		Example: `  adcarbon activity list --filter channel=Print --filter market=UK
  adcarbon activity list --sort kg:desc --limit 10
  adcarbon activity list --page 2 --page-size 20 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			if err = page.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				items, err := a.tracker.List(ctx)
				if err != nil {
					return err
				}
				if items, err = ApplyFilters(ctx, items, filters); err != nil {
					return err
				}
				views := make([]activityView, 0, len(items))
				for _, act := range items {
					kg, provisional := a.orch.ActivityTotal(act)
					if provisional {
						kg = displayTotal(a, act)
					}
					views = append(views, activityView{
						Activity:    act,
						KgCO2e:      kg,
						Provisional: provisional,
						Results:     a.orch.CurrentResults(act),
					})
				}
				if views, err = activitySorter.SortBy(views, page.Sort); err != nil {
					return err
				}
				total := len(views)
				views = pagination.Apply(page, views)
				if format == formatJSON {
					return renderJSON(cmd.OutOrStdout(), views)
				}
				if err = renderActivityList(cmd.OutOrStdout(), a, views); err != nil {
					return err
				}
				if page.IsEnabled() && total > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), pagination.NewPaginationMeta(page, total).Footer("activities"))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as key=value; repeat to combine")
	page.AddFlags(cmd, activitySorter.GetValidFields())
	return cmd
}

// displayTotal sums the display value of every unit, which is the local
// estimate for units still pending. It starts background calculation.
func displayTotal(a *app, act activity.Activity) float64 {
	var kg float64
	for _, u := range act.UnitNames() {
		kg += a.orch.Display(context.Background(), act, u).KgCO2e
	}
	return kg
}

func renderActivityList(w io.Writer, a *app, views []activityView) error {
	if len(views) == 0 {
		fmt.Fprintln(w, "No activities recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "ID\tChannel\tMarket\tScope\tDate\tUnits\tkg CO2e")
	fmt.Fprintln(tw, "--\t-------\t------\t-----\t----\t-----\t-------")
	for _, v := range views {
		date := ""
		if !v.Date.IsZero() {
			date = v.Date.Format(activity.DateLayout)
		}
		kg := greenops.FormatFloat(v.KgCO2e, kgPrecision(a))
		if v.Provisional {
			kg += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			v.ID, v.Channel, v.Market, int(v.Scope), date, unitSummary(v.Activity), kg)
	}
	return tw.Flush()
}

// NewActivityShowCmd creates the activity show command.
func NewActivityShowCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one activity and resolve its emissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				act, err := a.tracker.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("activity %s: %w", args[0], err)
				}
				results, err := a.orch.ResolveActivity(ctx, act)
				if err != nil {
					return err
				}
				kg, provisional := a.orch.ActivityTotal(act)
				v := activityView{Activity: act, KgCO2e: kg, Provisional: provisional, Results: results}
				if format == formatJSON {
					return renderJSON(cmd.OutOrStdout(), v)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Activity %s\n", act.ID)
				return renderActivityDetail(cmd.OutOrStdout(), a, v)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json")
	return cmd
}

// NewActivityRemoveCmd creates the activity remove command.
func NewActivityRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Delete an activity and its cached results",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirmOrAbort(cmd, yes, fmt.Sprintf("Delete activity %s?", args[0])); err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				if err := a.tracker.Remove(ctx, args[0]); err != nil {
					return fmt.Errorf("activity %s: %w", args[0], err)
				}
				cmd.Printf("Removed activity %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
