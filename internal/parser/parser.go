// Package parser decodes the payloads of the telemetry API and checks their
// shape before they reach the session.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"teb-dashboard/internal/models"
)

// ErrInvalidPayload is returned when a payload is not JSON or misses
// required fields
var ErrInvalidPayload = errors.New("invalid payload")

type realtimeWire struct {
	Timestamp string                    `json:"timestamp"`
	KPIs      *models.RealtimeKPIs      `json:"kpis"`
	Turbines  *[]models.RealtimeTurbine `json:"turbines"`
}

type alertsWire struct {
	Alerts *[]alertWire `json:"alerts"`
}

type alertWire struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Source    string   `json:"source"`
	TurbineID string   `json:"turbine_id"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp"`
	Priority  string   `json:"priority"`
	Read      bool     `json:"read"`
	Actions   []string `json:"actions"`
}

type predictionsWire struct {
	Predictions *[]predictionWire        `json:"predictions"`
	Summary     models.PredictionSummary `json:"summary"`
}

type predictionWire struct {
	TurbineID              string   `json:"turbine_id"`
	FailureProbability     *float64 `json:"failure_probability"`
	PredictedAvailability  float64  `json:"predicted_availability"`
	AnomalyDetected        bool     `json:"anomaly_detected"`
	EstimatedDaysToFailure int      `json:"estimated_days_to_failure"`
	RecommendedAction      string   `json:"recommended_action"`
	Confidence             float64  `json:"confidence"`
	Priority               string   `json:"priority"`
}

// DecodeRealtime decodes the body of the realtime endpoint
func DecodeRealtime(r io.Reader) (*models.RealtimeSnapshot, error) {
	var w realtimeWire
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: realtime: %v", ErrInvalidPayload, err)
	}
	if problems := validateRealtime(&w); len(problems) > 0 {
		return nil, invalid("realtime", problems)
	}

	snap := &models.RealtimeSnapshot{KPIs: *w.KPIs, Turbines: *w.Turbines}
	if w.Timestamp != "" {
		ts, err := parseTimestamp(w.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: realtime: %v", ErrInvalidPayload, err)
		}
		snap.Timestamp = ts
	}
	return snap, nil
}

// DecodeAlerts decodes the body of the alerts endpoint. Alerts raised by the
// API carry no source or title, so both are filled in.
func DecodeAlerts(r io.Reader) ([]models.AlertEvent, error) {
	var w alertsWire
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: alerts: %v", ErrInvalidPayload, err)
	}
	if w.Alerts == nil {
		return nil, invalid("alerts", []string{"alerts is required"})
	}

	var problems []string
	alerts := make([]models.AlertEvent, 0, len(*w.Alerts))
	for i, a := range *w.Alerts {
		if p := validateAlert(&a); len(p) > 0 {
			for _, msg := range p {
				problems = append(problems, fmt.Sprintf("alerts[%d]: %s", i, msg))
			}
			continue
		}
		ev := models.AlertEvent{
			ID:        a.ID,
			Type:      a.Type,
			Source:    a.Source,
			TurbineID: a.TurbineID,
			Title:     a.Title,
			Message:   a.Message,
			Priority:  a.Priority,
			Read:      a.Read,
			Actions:   a.Actions,
		}
		if ev.Source == "" {
			ev.Source = models.SourceSystem
		}
		if ev.Title == "" {
			ev.Title = "Alerta do Sistema - " + a.TurbineID
		}
		if ev.Priority == "" {
			ev.Priority = models.PriorityMedium
		}
		if a.Timestamp != "" {
			ts, err := parseTimestamp(a.Timestamp)
			if err != nil {
				problems = append(problems, fmt.Sprintf("alerts[%d]: %v", i, err))
				continue
			}
			ev.Timestamp = ts
		}
		alerts = append(alerts, ev)
	}
	if len(problems) > 0 {
		return nil, invalid("alerts", problems)
	}
	return alerts, nil
}

// DecodePredictions decodes the body of the all-turbines prediction endpoint
func DecodePredictions(r io.Reader) (*models.PredictionBatch, error) {
	var w predictionsWire
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: predictions: %v", ErrInvalidPayload, err)
	}
	if w.Predictions == nil {
		return nil, invalid("predictions", []string{"predictions is required"})
	}

	var problems []string
	batch := &models.PredictionBatch{
		Predictions: make([]models.Prediction, 0, len(*w.Predictions)),
		Summary:     w.Summary,
	}
	for i, p := range *w.Predictions {
		if msgs := validatePrediction(&p); len(msgs) > 0 {
			for _, msg := range msgs {
				problems = append(problems, fmt.Sprintf("predictions[%d]: %s", i, msg))
			}
			continue
		}
		batch.Predictions = append(batch.Predictions, models.Prediction{
			TurbineID:              p.TurbineID,
			FailureProbability:     *p.FailureProbability,
			PredictedAvailability:  p.PredictedAvailability,
			AnomalyDetected:        p.AnomalyDetected,
			EstimatedDaysToFailure: p.EstimatedDaysToFailure,
			RecommendedAction:      p.RecommendedAction,
			Confidence:             p.Confidence,
			Priority:               p.Priority,
		})
	}
	if len(problems) > 0 {
		return nil, invalid("predictions", problems)
	}
	return batch, nil
}

func invalid(payload string, problems []string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, payload, strings.Join(problems, "; "))
}

// validateRealtime checks the required parts of a realtime payload
func validateRealtime(w *realtimeWire) []string {
	var errors []string

	if w.KPIs == nil {
		errors = append(errors, "kpis is required")
	}
	if w.Turbines == nil {
		errors = append(errors, "turbines is required")
		return errors
	}
	for i := range *w.Turbines {
		for _, msg := range ValidateTurbine(&(*w.Turbines)[i]) {
			errors = append(errors, fmt.Sprintf("turbines[%d]: %s", i, msg))
		}
	}

	return errors
}

// ValidateTurbine validates a live turbine reading
func ValidateTurbine(t *models.RealtimeTurbine) []string {
	var errors []string

	if t.ID == "" {
		errors = append(errors, "id is required")
	}
	if t.Status == "" {
		errors = append(errors, "status is required")
	}

	return errors
}

// validateAlert validates an alert as sent by the API
func validateAlert(a *alertWire) []string {
	var errors []string

	if a.ID == "" {
		errors = append(errors, "id is required")
	}
	if a.Type == "" {
		errors = append(errors, "type is required")
	}
	if a.Message == "" {
		errors = append(errors, "message is required")
	}

	return errors
}

// validatePrediction validates a single turbine prediction
func validatePrediction(p *predictionWire) []string {
	var errors []string

	if p.TurbineID == "" {
		errors = append(errors, "turbine_id is required")
	}
	if p.FailureProbability == nil {
		errors = append(errors, "failure_probability is required")
	} else if *p.FailureProbability < 0 || *p.FailureProbability > 1 {
		errors = append(errors, "failure_probability must be between 0 and 1")
	}

	return errors
}

// parseTimestamp tries multiple timestamp formats. Timestamps without a zone
// are read as local time, like the isoformat strings of the API.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, time.Local); err == nil {
			return t, nil
		}
	}

	// Try Unix timestamp
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(ts, 0), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}
