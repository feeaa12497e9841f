package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/conversion"
	"github.com/rshade/adcarbon/internal/engine"
	"github.com/rshade/adcarbon/internal/reconcile"
)

// ActivityRequest is the body of POST and PUT /api/activities. Units maps a
// unit to the quantity the user entered; other units of the channel are
// derived through the conversion table.
type ActivityRequest struct {
	Channel      string             `json:"channel"`
	Market       string             `json:"market"`
	Date         string             `json:"date,omitempty"`
	Scope        int                `json:"scope"`
	ActivityType string             `json:"activityType,omitempty"`
	Campaign     string             `json:"campaign,omitempty"`
	Units        map[string]float64 `json:"units"`
}

// toActivity reconciles the request into an activity without an ID.
func (req ActivityRequest) toActivity(table *conversion.Table) (activity.Activity, error) {
	d, err := reconcile.NewDraft(table, req.Channel)
	if err != nil {
		return activity.Activity{}, err
	}
	d.Market = req.Market
	d.Scope = activity.Scope(req.Scope)
	d.ActivityType = req.ActivityType
	d.Campaign = req.Campaign
	if req.Date != "" {
		if d.Date, err = time.Parse(activity.DateLayout, req.Date); err != nil {
			return activity.Activity{}, fmt.Errorf("date must be %s: %w", activity.DateLayout, err)
		}
	}

	raw := make(map[string]string, len(req.Units))
	for u, v := range req.Units {
		raw[u] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if err = d.Apply(raw); err != nil {
		return activity.Activity{}, err
	}
	return d.Build()
}

// ActivityResponse is an activity with its current emissions.
type ActivityResponse struct {
	activity.Activity
	KgCO2e      float64         `json:"kgCO2e"`
	Provisional bool            `json:"provisional"`
	Results     []engine.Result `json:"results"`
}

// TotalsResponse is the body of GET /api/totals.
type TotalsResponse struct {
	engine.Report
	Equivalencies string `json:"equivalencies,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
