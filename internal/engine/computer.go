package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rshade/adcarbon/internal/greenops"
)

// ComputePath is the compute endpoint relative to the service base URL.
const ComputePath = "/api/emissions/compute"

// maxResponseBytes bounds the compute response body.
const maxResponseBytes = 1 << 20

// Computer calculates kg CO2e for one descriptor.
type Computer interface {
	Compute(ctx context.Context, d Descriptor) (float64, error)
}

// ComputerFunc adapts a function to Computer.
type ComputerFunc func(ctx context.Context, d Descriptor) (float64, error)

// Compute calls f.
func (f ComputerFunc) Compute(ctx context.Context, d Descriptor) (float64, error) {
	return f(ctx, d)
}

// ComputeResponse is the compute service's JSON answer.
type ComputeResponse struct {
	Success bool         `json:"success"`
	Data    *ComputeData `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ComputeData carries the computed emissions. Unit defaults to kg.
type ComputeData struct {
	TotalEmissions float64 `json:"totalEmissions"`
	Unit           string  `json:"unit,omitempty"`
}

// HTTPComputer calls a remote compute service over HTTP.
type HTTPComputer struct {
	baseURL string
	client  *http.Client
}

var _ Computer = (*HTTPComputer)(nil)

// NewHTTPComputer returns a Computer for the service at baseURL. A nil client
// uses a client with a 30s timeout.
func NewHTTPComputer(baseURL string, client *http.Client) *HTTPComputer {
	if client == nil {
		const defaultTimeout = 30 * time.Second
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPComputer{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Compute posts d and returns the emissions in kg. Every failure wraps
// ErrComputeFailed.
func (c *HTTPComputer) Compute(ctx context.Context, d Descriptor) (float64, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return 0, fmt.Errorf("%w: encoding request: %w", ErrComputeFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ComputePath, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: building request: %w", ErrComputeFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrComputeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return 0, fmt.Errorf("%w: unexpected status %d", ErrComputeFailed, resp.StatusCode)
	}

	var out ComputeResponse
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decoding response: %w", ErrComputeFailed, err)
	}
	return out.Kg()
}

// Kg validates a response and returns its total in kilograms.
func (r ComputeResponse) Kg() (float64, error) {
	if !r.Success {
		if r.Error != "" {
			return 0, fmt.Errorf("%w: %s", ErrComputeFailed, r.Error)
		}
		return 0, fmt.Errorf("%w: service reported failure", ErrComputeFailed)
	}
	if r.Data == nil {
		return 0, fmt.Errorf("%w: response has no data", ErrComputeFailed)
	}
	kg, err := greenops.NormalizeToKg(r.Data.TotalEmissions, r.Data.Unit)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrComputeFailed, err)
	}
	if math.IsNaN(kg) {
		return 0, fmt.Errorf("%w: invalid emissions", ErrComputeFailed)
	}
	return kg, nil
}
