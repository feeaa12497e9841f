package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPComputer(t *testing.T) {
	var got Descriptor
	tests := []struct {
		name    string
		status  int
		body    string
		wantKg  float64
		wantErr bool
	}{
		{name: "kilograms", status: http.StatusOK, body: `{"success":true,"data":{"totalEmissions":12.5}}`, wantKg: 12.5},
		{name: "grams normalized", status: http.StatusOK, body: `{"success":true,"data":{"totalEmissions":2500,"unit":"g"}}`, wantKg: 2.5},
		{name: "tons normalized", status: http.StatusOK, body: `{"success":true,"data":{"totalEmissions":0.5,"unit":"t"}}`, wantKg: 500},
		{name: "success false", status: http.StatusOK, body: `{"success":false,"error":"quota"}`, wantErr: true},
		{name: "missing data", status: http.StatusOK, body: `{"success":true}`, wantErr: true},
		{name: "negative", status: http.StatusOK, body: `{"success":true,"data":{"totalEmissions":-1}}`, wantErr: true},
		{name: "unknown unit", status: http.StatusOK, body: `{"success":true,"data":{"totalEmissions":1,"unit":"oz"}}`, wantErr: true},
		{name: "malformed", status: http.StatusOK, body: `{"success":`, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, ComputePath, r.URL.Path)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPComputer(srv.URL+"/", nil)
			kg, err := c.Compute(context.Background(), NewDescriptor(testActivity("a1"), "km"))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrComputeFailed)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantKg, kg, 1e-9)
			assert.Equal(t, "km", got.Unit)
			assert.InDelta(t, 100.0, got.Quantity, 1e-9)
			assert.Equal(t, "2026-03-01", got.Date)
			assert.Equal(t, 3, got.Scope)
			assert.Equal(t, "Ad Production", got.ActivityType)
		})
	}
}

func TestHTTPComputerTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewHTTPComputer(url, &http.Client{Timeout: time.Second})
	_, err := c.Compute(context.Background(), Descriptor{Unit: "km", Quantity: 1})
	require.ErrorIs(t, err, ErrComputeFailed)
}
