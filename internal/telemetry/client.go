// Package telemetry talks to the wind farm telemetry and prediction API and
// schedules the periodic polls of the dashboard.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"teb-dashboard/internal/models"
	"teb-dashboard/internal/parser"
)

// API paths, relative to the base URL
const (
	RealtimePath    = "/turbines/realtime"
	AlertsPath      = "/alerts"
	PredictionsPath = "/ml/predict/all"
)

// ErrBadStatus is returned when the API answers with a non-2xx status
var ErrBadStatus = errors.New("unexpected status")

// Client reads the telemetry API
type Client struct {
	base string
	h    *http.Client
}

// NewClient creates a client for the API rooted at base. A zero timeout
// leaves requests bounded only by their context.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		h:    &http.Client{Timeout: timeout},
	}
}

// FetchRealtime returns the current state of every turbine
func (c *Client) FetchRealtime(ctx context.Context) (*models.RealtimeSnapshot, error) {
	var snap *models.RealtimeSnapshot
	err := c.get(ctx, RealtimePath, func(r io.Reader) (err error) {
		snap, err = parser.DecodeRealtime(r)
		return err
	})
	return snap, err
}

// FetchAlerts returns the alerts currently raised by the API
func (c *Client) FetchAlerts(ctx context.Context) ([]models.AlertEvent, error) {
	var alerts []models.AlertEvent
	err := c.get(ctx, AlertsPath, func(r io.Reader) (err error) {
		alerts, err = parser.DecodeAlerts(r)
		return err
	})
	return alerts, err
}

// FetchPredictions returns the failure predictions for every turbine
func (c *Client) FetchPredictions(ctx context.Context) (*models.PredictionBatch, error) {
	var batch *models.PredictionBatch
	err := c.get(ctx, PredictionsPath, func(r io.Reader) (err error) {
		batch, err = parser.DecodePredictions(r)
		return err
	})
	return batch, err
}

func (c *Client) get(ctx context.Context, path string, decode func(io.Reader) error) error {
	u := c.base + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.h.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", ErrBadStatus, u, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := decode(resp.Body); err != nil {
		return fmt.Errorf("%s: %w", u, err)
	}
	return nil
}
