package dataset

import (
	"teb-dashboard/internal/models"
)

// FromRealtime builds a snapshot from live telemetry so the export builders
// can run on it. Figures the live feed does not carry (MTBF, criticality
// score, map position) come from the base record of the same turbine. The
// live feed has no monthly history, so Trends is empty.
func FromRealtime(rt *models.RealtimeSnapshot) *models.PeriodSnapshot {
	base := make(map[string]models.TurbineRecord, len(baseTurbines))
	for _, t := range baseTurbines {
		base[t.ID] = t
	}

	snap := &models.PeriodSnapshot{
		Key:         PeriodRealtime,
		Label:       "Tempo Real",
		Description: rt.Timestamp.Format("02/01/2006 15:04:05"),
		Trends:      []models.TrendPoint{},
		KPIs: models.KPISet{
			TotalFailures: rt.KPIs.TotalFailures,
			EventsByClass: make(map[models.ClassCode]int, len(models.ClassCodes)),
		},
	}
	for _, code := range models.ClassCodes {
		snap.KPIs.EventsByClass[code] = 0
	}

	lowest := -1
	for _, lt := range rt.Turbines {
		rec, ok := base[lt.ID]
		if !ok {
			rec = models.TurbineRecord{ID: lt.ID}
		}
		if lt.Name != "" {
			rec.Name = lt.Name
		}
		if lt.Failures > 0 {
			rec.Failures = lt.Failures
		}
		if lt.MTTR > 0 {
			rec.MTTR = lt.MTTR
		}
		if c := models.Criticality(lt.Criticality); c == models.CriticalityHigh || c == models.CriticalityMedium || c == models.CriticalityLow {
			rec.Criticality = c
		}
		rec.Availability = lt.Availability
		if lt.Failures > 0 && lt.MTTR > 0 {
			rec.TotalDowntime = float64(lt.Failures) * lt.MTTR
		}
		snap.KPIs.TotalDowntime += rec.TotalDowntime
		snap.Turbines = append(snap.Turbines, rec)

		if lowest < 0 || rec.Availability < snap.Turbines[lowest].Availability {
			lowest = len(snap.Turbines) - 1
		}
	}

	switch {
	case len(rt.KPIs.CriticalTurbines) > 0:
		snap.KPIs.MostCritical = rt.KPIs.CriticalTurbines[0]
	case lowest >= 0:
		snap.KPIs.MostCritical = snap.Turbines[lowest].ID
	}
	return snap
}
