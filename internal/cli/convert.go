package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/adcarbon/internal/config"
	"github.com/rshade/adcarbon/internal/conversion"
	"github.com/rshade/adcarbon/internal/reconcile"
)

// convertRow is one unit of a conversion preview.
type convertRow struct {
	Unit  string  `json:"unit"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Text  string  `json:"text"`
	State string  `json:"state"`
}

// NewConvertCmd creates the convert command, which reconciles unit
// quantities for a channel without saving anything.
func NewConvertCmd() *cobra.Command {
	var (
		channel string
		sets    []string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Preview unit reconciliation for a channel",
		Long: `Enters quantities into a channel's unit fields in unit-name order and
prints every field with its state: manual for entered values, derived for
converted ones, empty when no conversion path exists. Nothing is saved.

Without --channel the available channels and their units are listed.`,
		Example: `  adcarbon convert
  adcarbon convert --channel "Ad Production" --set km=100
  adcarbon convert --channel "Ad Production" --set kWh=6 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			table, err := conversion.Load(config.GetGlobalConfig().Tables.Conversion)
			if err != nil {
				return err
			}
			if channel == "" {
				return renderChannels(cmd.OutOrStdout(), table, format)
			}
			values, err := parseUnitFlags(sets)
			if err != nil {
				return err
			}
			d, err := reconcile.NewDraft(table, channel)
			if err != nil {
				return err
			}
			if err = d.Apply(values); err != nil {
				return err
			}
			rows := make([]convertRow, 0)
			for _, e := range d.Reconciler().Entries() {
				rows = append(rows, convertRow{
					Unit:  e.Unit,
					Label: d.Label(e.Unit),
					Value: e.Value,
					Text:  e.Raw,
					State: e.State.String(),
				})
			}
			if format == formatJSON {
				return renderJSON(cmd.OutOrStdout(), rows)
			}
			return renderConvertRows(cmd.OutOrStdout(), channel, rows)
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "marketing channel")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "unit quantity as unit=value; repeat for several units")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json")
	return cmd
}

func renderConvertRows(w io.Writer, channel string, rows []convertRow) error {
	fmt.Fprintf(w, "Channel: %s\n\n", channel)
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "Unit\tLabel\tValue\tState")
	fmt.Fprintln(tw, "----\t-----\t-----\t-----")
	for _, r := range rows {
		text := r.Text
		if text == "" {
			text = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Unit, r.Label, text, r.State)
	}
	return tw.Flush()
}

func renderChannels(w io.Writer, table *conversion.Table, format string) error {
	channels := make([]conversion.Channel, 0)
	for _, name := range table.Channels() {
		if ch, ok := table.Channel(name); ok {
			channels = append(channels, ch)
		}
	}
	if format == formatJSON {
		return renderJSON(w, channels)
	}
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "Channel\tUnits")
	fmt.Fprintln(tw, "-------\t-----")
	for _, ch := range channels {
		fmt.Fprintf(tw, "%s\t%s\n", ch.Name, strings.Join(ch.Units, ", "))
	}
	return tw.Flush()
}
