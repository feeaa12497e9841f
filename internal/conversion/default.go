package conversion

// Built-in channel catalogue and factors. The numbers are placeholders used
// when no table file is configured; deployments are expected to supply their own.
//
//nolint:gochecknoglobals // read-only seed data, copied into a Table by Default
var (
	defaultChannels = []Channel{
		{
			Name:  "Ad Production",
			Units: []string{"km", "kWh", "render_hours"},
			Labels: map[string]string{
				"km":           "Kilometres travelled",
				"kWh":          "Electricity used",
				"render_hours": "Render hours",
			},
		},
		{
			Name:  "Digital Display",
			Units: []string{"impressions", "GB"},
			Labels: map[string]string{
				"impressions": "Impressions served",
				"GB":          "Data transferred",
			},
		},
		{
			Name:  "Print",
			Units: []string{"copies", "kg_paper"},
			Labels: map[string]string{
				"copies":   "Copies printed",
				"kg_paper": "Paper weight",
			},
		},
		{
			Name:  "Events",
			Units: []string{"attendees", "km", "kWh"},
		},
		{
			Name:  "Out of Home",
			Units: []string{"panel_days", "kWh"},
		},
	}

	defaultFactors = []Factor{
		{From: "km", To: "kWh", Factor: 0.2},
		{From: "render_hours", To: "kWh", Factor: 1.5},
		{From: "impressions", To: "GB", Factor: 0.000003},
		{From: "copies", To: "kg_paper", Factor: 0.12},
		{From: "attendees", To: "km", Factor: 40},
		{From: "panel_days", To: "kWh", Factor: 8},
	}
)

// Default returns the built-in table.
func Default() *Table {
	t, err := NewTable(defaultFactors, defaultChannels)
	if err != nil {
		// The seed data is static; a failure here is a programming error.
		panic(err)
	}
	return t
}
