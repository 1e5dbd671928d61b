package dataset

import (
	"sort"

	"teb-dashboard/internal/models"
)

// Ranking metrics
const (
	MetricAvailability = "disponibilidade"
	MetricMTBF         = "mtbf"
	MetricMTTR         = "mttr"
)

// Performance tiers assigned by ranking position
const (
	TierExcellent = "excelente"
	TierAverage   = "medio"
	TierCritical  = "critico"
)

// Benchmark ranks the snapshot's turbines by availability and MTBF (higher is
// better) and by MTTR (lower is better).
func Benchmark(snap *models.PeriodSnapshot) []models.Ranking {
	return []models.Ranking{
		rank(snap.Turbines, MetricAvailability, func(t models.TurbineRecord) float64 { return t.Availability }, true),
		rank(snap.Turbines, MetricMTBF, func(t models.TurbineRecord) float64 { return t.MTBF }, true),
		rank(snap.Turbines, MetricMTTR, func(t models.TurbineRecord) float64 { return t.MTTR }, false),
	}
}

func rank(turbines []models.TurbineRecord, metric string, value func(models.TurbineRecord) float64, desc bool) models.Ranking {
	sorted := append([]models.TurbineRecord(nil), turbines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if desc {
			return value(sorted[i]) > value(sorted[j])
		}
		return value(sorted[i]) < value(sorted[j])
	})

	r := models.Ranking{Metric: metric, Entries: make([]models.RankingEntry, len(sorted))}
	for i, t := range sorted {
		r.Entries[i] = models.RankingEntry{
			Position:  i + 1,
			TurbineID: t.ID,
			Value:     value(t),
			Tier:      tierFor(i+1, len(sorted)),
		}
	}
	return r
}

// tierFor puts the top 30% in excellent and the bottom 30% in critical.
func tierFor(position, total int) string {
	switch {
	case float64(position) <= float64(total)*0.3:
		return TierExcellent
	case float64(position) >= float64(total)*0.7:
		return TierCritical
	default:
		return TierAverage
	}
}
