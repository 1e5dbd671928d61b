package telemetry

import (
	"fmt"
	"time"

	"teb-dashboard/internal/models"
)

// Thresholds are the failure probabilities above which a prediction raises
// an alert
type Thresholds struct {
	Critical float64
	Warning  float64
}

// DefaultThresholds are the probabilities used by the dashboard
var DefaultThresholds = Thresholds{Critical: 0.7, Warning: 0.4}

// Recommended actions attached to synthesized alerts
const (
	ActionImmediateMaintenance = "immediate_maintenance"
	ActionScheduleMaintenance  = "schedule_maintenance"
	ActionInvestigate          = "investigate"
)

// SynthesizeAlerts turns predictions into alerts. A prediction yields at most
// one probability alert, critical above th.Critical or high above th.Warning,
// plus a medium anomaly alert when an anomaly was detected. Ids embed the
// turbine and now in milliseconds.
func SynthesizeAlerts(preds []models.Prediction, now time.Time, th Thresholds) []models.AlertEvent {
	ms := now.UnixMilli()
	var out []models.AlertEvent

	for _, p := range preds {
		pct := p.FailureProbability * 100

		switch {
		case p.FailureProbability > th.Critical:
			out = append(out, models.AlertEvent{
				ID:        fmt.Sprintf("ml_critical_%s_%d", p.TurbineID, ms),
				Type:      "critical",
				Source:    models.SourceML,
				TurbineID: p.TurbineID,
				Title:     "Falha Iminente Detectada - " + p.TurbineID,
				Message:   fmt.Sprintf("Probabilidade de falha: %.1f%%. Ação imediata necessária.", pct),
				Timestamp: now,
				Priority:  models.PriorityCritical,
				Actions:   []string{ActionImmediateMaintenance},
			})
		case p.FailureProbability > th.Warning:
			out = append(out, models.AlertEvent{
				ID:        fmt.Sprintf("ml_warning_%s_%d", p.TurbineID, ms),
				Type:      "warning",
				Source:    models.SourceML,
				TurbineID: p.TurbineID,
				Title:     "Risco Elevado - " + p.TurbineID,
				Message:   fmt.Sprintf("Probabilidade de falha: %.1f%%. Agendar manutenção preventiva.", pct),
				Timestamp: now,
				Priority:  models.PriorityHigh,
				Actions:   []string{ActionScheduleMaintenance},
			})
		}

		if p.AnomalyDetected {
			out = append(out, models.AlertEvent{
				ID:        fmt.Sprintf("ml_anomaly_%s_%d", p.TurbineID, ms),
				Type:      "anomaly",
				Source:    models.SourceML,
				TurbineID: p.TurbineID,
				Title:     "Anomalia Detectada - " + p.TurbineID,
				Message:   "Comportamento anômalo identificado pelo sistema de ML. Investigação recomendada.",
				Timestamp: now,
				Priority:  models.PriorityMedium,
				Actions:   []string{ActionInvestigate},
			})
		}
	}
	return out
}
