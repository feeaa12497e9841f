package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/conversion"
	"github.com/rshade/adcarbon/internal/emission"
	"github.com/rshade/adcarbon/internal/engine"
	"github.com/rshade/adcarbon/internal/greenops"
	"github.com/rshade/adcarbon/internal/logging"
	"github.com/rshade/adcarbon/internal/reconcile"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler holds the dependencies of every route.
type Handler struct {
	tracker   *engine.Tracker
	table     *conversion.Table
	estimator emission.Estimator
}

// NewHandler returns a Handler. estimator answers the compute route.
func NewHandler(tracker *engine.Tracker, table *conversion.Table, estimator emission.Estimator) *Handler {
	return &Handler{tracker: tracker, table: table, estimator: estimator}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Compute answers the compute-service contract with the local estimator.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	var d engine.Descriptor
	if err := decode(w, r, &d); err != nil {
		writeJSON(w, http.StatusBadRequest, engine.ComputeResponse{Error: err.Error()})
		return
	}
	if d.Unit == "" || math.IsNaN(d.Quantity) || math.IsInf(d.Quantity, 0) || d.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, engine.ComputeResponse{Error: "unit and a positive quantity are required"})
		return
	}

	kg := h.estimator.Estimate(d.Quantity, d.Unit)
	logging.FromContext(r.Context()).Debug().
		Str("operation", "compute").
		Str("activity_type", d.ActivityType).
		Str("unit", d.Unit).
		Float64("quantity", d.Quantity).
		Float64("kg_co2e", kg).
		Msg("computed emissions")
	writeJSON(w, http.StatusOK, engine.ComputeResponse{
		Success: true,
		Data:    &engine.ComputeData{TotalEmissions: kg, Unit: "kg"},
	})
}

// ListChannels returns the channel catalogue.
func (h *Handler) ListChannels(w http.ResponseWriter, _ *http.Request) {
	names := h.table.Channels()
	out := make([]conversion.Channel, 0, len(names))
	for _, n := range names {
		if c, ok := h.table.Channel(n); ok {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListActivities returns every activity with its current emissions.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	filters, err := queryFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter", err)
		return
	}
	items, err := h.tracker.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list activities", err)
		return
	}
	items = activity.FilterActivities(items, filters)
	out := make([]ActivityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, h.respond(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// queryFilters turns query parameters such as ?channel=Print&from=2026-01-01
// into activity filters.
func queryFilters(r *http.Request) ([]activity.Filter, error) {
	q := r.URL.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	filters := make([]activity.Filter, 0, len(keys))
	for _, k := range keys {
		for _, v := range q[k] {
			f, err := activity.ParseFilter(k + "=" + v)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
	}
	return filters, nil
}

// GetActivity returns one activity.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.respond(a))
}

// CreateActivity reconciles and stores a new activity.
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	a, err := req.toActivity(h.table)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity", err)
		return
	}
	if a, err = h.tracker.Add(r.Context(), a); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.respond(a))
}

// UpdateActivity replaces an activity wholesale.
func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	a, err := req.toActivity(h.table)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity", err)
		return
	}
	a.ID = chi.URLParam(r, "id")
	if a, err = h.tracker.Update(r.Context(), a); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.respond(a))
}

// DeleteActivity removes an activity and its results.
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Totals returns the totals snapshot. Pending calculations are not awaited.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	rep, err := h.tracker.Report(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build report", err)
		return
	}
	resp := TotalsResponse{Report: rep}
	if eq, eqErr := greenops.Calculate(rep.Totals.Total); eqErr == nil && !eq.Empty() {
		resp.Equivalencies = eq.Text()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) respond(a activity.Activity) ActivityResponse {
	orch := h.tracker.Orchestrator()
	kg, provisional := orch.ActivityTotal(a)
	results := orch.CurrentResults(a)
	if results == nil {
		results = []engine.Result{}
	}
	return ActivityResponse{Activity: a, KgCO2e: kg, Provisional: provisional, Results: results}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, activity.ErrNotFound):
		writeError(w, http.StatusNotFound, "activity not found", err)
	case errors.Is(err, activity.ErrInvalidActivity),
		errors.Is(err, reconcile.ErrEmptyDraft):
		writeError(w, http.StatusBadRequest, "invalid activity", err)
	default:
		writeError(w, http.StatusInternalServerError, "activity store failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
