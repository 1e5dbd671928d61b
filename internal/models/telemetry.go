package models

import "time"

// RealtimeSnapshot is the live farm state returned by the telemetry API
type RealtimeSnapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	KPIs      RealtimeKPIs      `json:"kpis"`
	Turbines  []RealtimeTurbine `json:"turbines"`
}

// RealtimeKPIs are the farm-wide live indicators
type RealtimeKPIs struct {
	TotalFailures       int      `json:"total_failures"`
	AvgAvailability     float64  `json:"avg_availability"`
	CriticalTurbines    []string `json:"critical_turbines"`
	OperationalTurbines int      `json:"operational_turbines,omitempty"`
	TotalPowerOutput    float64  `json:"total_power_output"` // MW
}

// RealtimeTurbine represents a single live reading from a turbine
type RealtimeTurbine struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	Failures     int     `json:"failures,omitempty"`
	MTTR         float64 `json:"mttr,omitempty"`
	Availability float64 `json:"availability"` // percentage
	Criticality  string  `json:"criticality,omitempty"`
	PowerOutput  float64 `json:"power_output"` // MW
	WindSpeed    float64 `json:"wind_speed"`   // m/s
	Temperature  float64 `json:"temperature"`  // Celsius
}

// Prediction is the ML failure forecast for one turbine
type Prediction struct {
	TurbineID              string  `json:"turbine_id"`
	FailureProbability     float64 `json:"failure_probability"`
	PredictedAvailability  float64 `json:"predicted_availability,omitempty"`
	AnomalyDetected        bool    `json:"anomaly_detected"`
	EstimatedDaysToFailure int     `json:"estimated_days_to_failure"`
	RecommendedAction      string  `json:"recommended_action"`
	Confidence             float64 `json:"confidence"`
	Priority               string  `json:"priority"`
}

// PredictionSummary provides aggregated ML statistics
type PredictionSummary struct {
	TotalTurbines            int     `json:"total_turbines,omitempty"`
	HighRiskTurbines         int     `json:"high_risk_turbines,omitempty"`
	AnomaliesDetected        int     `json:"anomalies_detected"`
	AvgPredictedAvailability float64 `json:"avg_predicted_availability"`
	CriticalActionsNeeded    int     `json:"critical_actions_needed"`
}

// PredictionBatch is the response of the all-turbines prediction endpoint
type PredictionBatch struct {
	Predictions []Prediction      `json:"predictions"`
	Summary     PredictionSummary `json:"summary"`
}

// Alert priorities
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Alert sources
const (
	SourceML     = "ml_prediction"
	SourceSystem = "system"
)

// AlertEvent represents a condition surfaced to the operator
type AlertEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // critical | warning | anomaly | ...
	Source    string    `json:"source"`
	TurbineID string    `json:"turbine_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Priority  string    `json:"priority"`
	Read      bool      `json:"read"`
	Actions   []string  `json:"actions,omitempty"`
}

// ConnectionStatus reports the state of the telemetry link
type ConnectionStatus struct {
	Connected  bool      `json:"connected"`
	LastUpdate time.Time `json:"last_update,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}
