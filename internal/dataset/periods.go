package dataset

import (
	"math"

	"teb-dashboard/internal/models"
)

// PeriodAll is the key of the full-period snapshot and the resolver fallback
const PeriodAll = "all"

// PeriodRealtime is the key given to snapshots built from live telemetry
const PeriodRealtime = "realtime"

// scaling derives a period's turbine figures from the base list.
// availability moves by lowAdd when below 50%, by highAdd otherwise, and is
// capped at maxAvail when maxAvail > 0.
type scaling struct {
	failures float64
	downtime float64
	lowAdd   float64
	highAdd  float64
	maxAvail float64
}

type periodDef struct {
	info   models.PeriodInfo
	kpis   models.KPISet
	trends []models.TrendPoint
	scale  *scaling
}

var periodDefs = []periodDef{
	{
		info:   models.PeriodInfo{Key: PeriodAll, Label: "Todos os Períodos", Description: "Jan-Jun 2025"},
		kpis:   baseKPIs,
		trends: baseTrends,
	},
	{
		info:   models.PeriodInfo{Key: "q1", Label: "1º Trimestre", Description: "Jan-Mar 2025"},
		kpis:   kpis(158, 2456.30, 85, 15, 18, 30, 10),
		trends: []models.TrendPoint{{Month: "2025-01", Failures: 30}, {Month: "2025-02", Failures: 50}, {Month: "2025-03", Failures: 78}},
		scale:  &scaling{failures: 0.63, downtime: 0.65, lowAdd: 5, highAdd: 1},
	},
	{
		info:   models.PeriodInfo{Key: "q2", Label: "2º Trimestre", Description: "Abr-Jun 2025"},
		kpis:   kpis(93, 1300.15, 49, 9, 10, 17, 6),
		trends: []models.TrendPoint{{Month: "2025-04", Failures: 22}, {Month: "2025-05", Failures: 46}, {Month: "2025-06", Failures: 25}},
		scale:  &scaling{failures: 0.37, downtime: 0.35, lowAdd: 10, highAdd: 2, maxAvail: 99.5},
	},
	{
		info:   models.PeriodInfo{Key: "jan", Label: "Janeiro", Description: "Jan 2025"},
		kpis:   kpis(30, 890.25, 18, 3, 2, 5, 2),
		trends: []models.TrendPoint{{Month: "2025-01", Failures: 30}},
		scale:  &scaling{failures: 0.12, downtime: 0.24, lowAdd: 8, highAdd: 1.5},
	},
	{
		info:   models.PeriodInfo{Key: "feb", Label: "Fevereiro", Description: "Fev 2025"},
		kpis:   kpis(50, 1245.80, 32, 5, 6, 5, 2),
		trends: []models.TrendPoint{{Month: "2025-02", Failures: 50}},
		scale:  &scaling{failures: 0.20, downtime: 0.33, lowAdd: 6, highAdd: 1},
	},
	{
		info:   models.PeriodInfo{Key: "mar", Label: "Março", Description: "Mar 2025"},
		kpis:   kpis(78, 1890.45, 48, 8, 12, 8, 2),
		trends: []models.TrendPoint{{Month: "2025-03", Failures: 78}},
		scale:  &scaling{failures: 0.31, downtime: 0.50, lowAdd: -5, highAdd: -2},
	},
	{
		info:   models.PeriodInfo{Key: "apr", Label: "Abril", Description: "Abr 2025"},
		kpis:   kpis(22, 456.30, 12, 3, 2, 4, 1),
		trends: []models.TrendPoint{{Month: "2025-04", Failures: 22}},
		scale:  &scaling{failures: 0.09, downtime: 0.12, lowAdd: 12, highAdd: 2, maxAvail: 99.5},
	},
	{
		info:   models.PeriodInfo{Key: "may", Label: "Maio", Description: "Mai 2025"},
		kpis:   kpis(46, 678.90, 28, 4, 6, 6, 2),
		trends: []models.TrendPoint{{Month: "2025-05", Failures: 46}},
		scale:  &scaling{failures: 0.18, downtime: 0.18, lowAdd: 8, highAdd: 1},
	},
	{
		info:   models.PeriodInfo{Key: "jun", Label: "Junho", Description: "Jun 2025"},
		kpis:   kpis(25, 345.60, 15, 2, 3, 4, 1),
		trends: []models.TrendPoint{{Month: "2025-06", Failures: 25}},
		scale:  &scaling{failures: 0.10, downtime: 0.09, lowAdd: 15, highAdd: 2.5, maxAvail: 99.8},
	},
	{
		info:   models.PeriodInfo{Key: "recent", Label: "Últimos 30 dias", Description: "Período mais recente"},
		kpis:   kpis(18, 234.50, 11, 2, 2, 2, 1),
		trends: []models.TrendPoint{{Month: "Últimos 30 dias", Failures: 18}},
		scale:  &scaling{failures: 0.07, downtime: 0.06, lowAdd: 18, highAdd: 3, maxAvail: 99.9},
	},
	{
		info:   models.PeriodInfo{Key: "peak", Label: "Período de Pico", Description: "Mar 2025 (78 falhas)"},
		kpis:   kpis(78, 1890.45, 48, 8, 12, 8, 2),
		trends: []models.TrendPoint{{Month: "2025-03", Failures: 78}},
		scale:  &scaling{failures: 0.31, downtime: 0.50, lowAdd: -5, highAdd: -2},
	},
}

var snapshots = buildSnapshots()

func kpis(total int, downtime float64, byClass ...int) models.KPISet {
	events := make(map[models.ClassCode]int, len(byClass))
	for i, n := range byClass {
		events[models.ClassCode(i+1)] = n
	}
	return models.KPISet{
		TotalFailures: total,
		TotalDowntime: downtime,
		MostCritical:  "TEB001",
		EventsByClass: events,
	}
}

func buildSnapshots() map[string]*models.PeriodSnapshot {
	out := make(map[string]*models.PeriodSnapshot, len(periodDefs))
	for _, def := range periodDefs {
		turbines := BaseTurbines()
		if def.scale != nil {
			turbines = deriveTurbines(baseTurbines, *def.scale)
		}
		out[def.info.Key] = &models.PeriodSnapshot{
			Key:         def.info.Key,
			Label:       def.info.Label,
			Description: def.info.Description,
			KPIs:        def.kpis,
			Trends:      append([]models.TrendPoint(nil), def.trends...),
			Turbines:    turbines,
		}
	}
	return out
}

// deriveTurbines applies a period scaling to every base record. Availability
// is not clamped to 100 unless the period sets a cap.
func deriveTurbines(base []models.TurbineRecord, s scaling) []models.TurbineRecord {
	out := make([]models.TurbineRecord, len(base))
	for i, t := range base {
		t.Failures = int(jsRound(float64(t.Failures) * s.failures))
		t.TotalDowntime = t.TotalDowntime * s.downtime
		if t.Availability < 50 {
			t.Availability += s.lowAdd
		} else {
			t.Availability += s.highAdd
		}
		if s.maxAvail > 0 {
			t.Availability = math.Min(s.maxAvail, t.Availability)
		}
		out[i] = t
	}
	return out
}

// jsRound rounds half up, matching the dashboard's client-side rounding.
func jsRound(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Resolve returns the snapshot for a period key, falling back to the full
// period for unknown keys. The returned snapshot is shared; do not mutate it.
func Resolve(key string) *models.PeriodSnapshot {
	if s, ok := snapshots[key]; ok {
		return s
	}
	return snapshots[PeriodAll]
}

// Known reports whether key names a canned period
func Known(key string) bool {
	_, ok := snapshots[key]
	return ok
}

// Periods lists the selectable periods in filter order
func Periods() []models.PeriodInfo {
	out := make([]models.PeriodInfo, len(periodDefs))
	for i, def := range periodDefs {
		out[i] = def.info
	}
	return out
}

// Keys returns every canned period key in filter order
func Keys() []string {
	out := make([]string, len(periodDefs))
	for i, def := range periodDefs {
		out[i] = def.info.Key
	}
	return out
}
