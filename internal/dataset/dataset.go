// Package dataset holds the static wind farm dataset and the canned period
// snapshots derived from it.
package dataset

import (
	"sort"

	"teb-dashboard/internal/models"
)

// ReportPeriod is the reporting window covered by the base dataset
const ReportPeriod = "01/01/2025 a 16/06/2025"

// Classifications maps each classification code to its display label
var Classifications = map[models.ClassCode]string{
	models.ClassCorrective:          "Atividades corretivas",
	models.ClassPreventive:          "Atividades preventivas",
	models.ClassOwnerRequested:      "Atividades solicitadas pelo proprietário",
	models.ClassEnvironmental:       "Condição ambiental",
	models.ClassScheduledCorrective: "Atividades corretivas programadas",
}

// ClassLabel returns the taxonomy label of a code, or an empty string
func ClassLabel(code models.ClassCode) string {
	return Classifications[code]
}

var baseTurbines = []models.TurbineRecord{
	{ID: "TEB001", Name: "TEB001", Failures: 40, TotalDowntime: 2938.42, CriticalityScore: 117536.67, MTBF: 26.14, MTTR: 73.46, Availability: 26.24, Criticality: models.CriticalityHigh, Position: models.Point{X: 100, Y: 100}},
	{ID: "TEB002", Name: "TEB002", Failures: 33, TotalDowntime: 116.73, CriticalityScore: 3852.20, MTBF: 117.19, MTTR: 3.54, Availability: 97.07, Criticality: models.CriticalityMedium, Position: models.Point{X: 250, Y: 150}},
	{ID: "TEB003", Name: "TEB003", Failures: 27, TotalDowntime: 59.08, CriticalityScore: 1595.25, MTBF: 145.37, MTTR: 2.19, Availability: 98.52, Criticality: models.CriticalityLow, Position: models.Point{X: 400, Y: 100}},
	{ID: "TEB004", Name: "TEB004", Failures: 46, TotalDowntime: 283.67, CriticalityScore: 13048.67, MTBF: 80.44, MTTR: 6.17, Availability: 92.88, Criticality: models.CriticalityMedium, Position: models.Point{X: 550, Y: 150}},
	{ID: "TEB005", Name: "TEB005", Failures: 24, TotalDowntime: 124.35, CriticalityScore: 2984.40, MTBF: 160.82, MTTR: 5.18, Availability: 96.88, Criticality: models.CriticalityLow, Position: models.Point{X: 100, Y: 300}},
	{ID: "TEB006", Name: "TEB006", Failures: 30, TotalDowntime: 72.17, CriticalityScore: 2165.00, MTBF: 130.39, MTTR: 2.41, Availability: 98.19, Criticality: models.CriticalityLow, Position: models.Point{X: 250, Y: 350}},
	{ID: "TEB007", Name: "TEB007", Failures: 25, TotalDowntime: 81.13, CriticalityScore: 2028.33, MTBF: 156.11, MTTR: 3.25, Availability: 97.96, Criticality: models.CriticalityLow, Position: models.Point{X: 400, Y: 300}},
	{ID: "TEB008", Name: "TEB008", Failures: 26, TotalDowntime: 80.90, CriticalityScore: 2103.40, MTBF: 150.12, MTTR: 3.11, Availability: 97.97, Criticality: models.CriticalityLow, Position: models.Point{X: 550, Y: 350}},
}

var baseKPIs = models.KPISet{
	TotalFailures: 251,
	TotalDowntime: 3756.45,
	MostCritical:  "TEB001",
	EventsByClass: map[models.ClassCode]int{1: 134, 2: 24, 3: 28, 4: 47, 5: 16},
}

var baseTrends = []models.TrendPoint{
	{Month: "2025-01", Failures: 30},
	{Month: "2025-02", Failures: 50},
	{Month: "2025-03", Failures: 78},
	{Month: "2025-04", Failures: 22},
	{Month: "2025-05", Failures: 46},
	{Month: "2025-06", Failures: 25},
}

// ClassCount is the number of events of one classification for a turbine
type ClassCount struct {
	Code  models.ClassCode
	Count int
}

// TurbineClassCounts is one row of the failures-by-classification table
type TurbineClassCounts struct {
	TurbineID string
	Counts    []ClassCount
}

// failuresByClass is kept in declaration order; codes ascend within each row.
var failuresByClass = []TurbineClassCounts{
	{TurbineID: "TEB001", Counts: classCounts(10, 3, 0, 25, 0)},
	{TurbineID: "TEB002", Counts: classCounts(25, 3, 3, 1, 1)},
	{TurbineID: "TEB003", Counts: classCounts(17, 3, 5, 1, 1)},
	{TurbineID: "TEB004", Counts: classCounts(28, 3, 3, 6, 6)},
	{TurbineID: "TEB005", Counts: classCounts(10, 3, 3, 5, 3)},
	{TurbineID: "TEB006", Counts: classCounts(20, 2, 4, 1, 3)},
	{TurbineID: "TEB007", Counts: classCounts(11, 4, 6, 3, 1)},
	{TurbineID: "TEB008", Counts: classCounts(13, 3, 4, 5, 1)},
}

// EnvironmentalImpact is the environmental downtime of one turbine
type EnvironmentalImpact struct {
	TurbineID string
	Hours     float64
}

var environmentalImpact = []EnvironmentalImpact{
	{TurbineID: "TEB001", Hours: 15.28},
	{TurbineID: "TEB002", Hours: 1.40},
	{TurbineID: "TEB003", Hours: 0.17},
	{TurbineID: "TEB004", Hours: 10.25},
	{TurbineID: "TEB005", Hours: 3.13},
	{TurbineID: "TEB006", Hours: 0.17},
	{TurbineID: "TEB007", Hours: 0.43},
	{TurbineID: "TEB008", Hours: 3.10},
}

func classCounts(counts ...int) []ClassCount {
	out := make([]ClassCount, len(counts))
	for i, c := range counts {
		out[i] = ClassCount{Code: models.ClassCode(i + 1), Count: c}
	}
	return out
}

// BaseTurbines returns a copy of the base turbine list
func BaseTurbines() []models.TurbineRecord {
	return append([]models.TurbineRecord(nil), baseTurbines...)
}

// FailuresByClass returns a copy of the static failures-by-classification table
func FailuresByClass() []TurbineClassCounts {
	out := make([]TurbineClassCounts, len(failuresByClass))
	for i, row := range failuresByClass {
		out[i] = TurbineClassCounts{
			TurbineID: row.TurbineID,
			Counts:    append([]ClassCount(nil), row.Counts...),
		}
	}
	return out
}

// EnvironmentalImpactTable returns a copy of the environmental downtime table
func EnvironmentalImpactTable() []EnvironmentalImpact {
	return append([]EnvironmentalImpact(nil), environmentalImpact...)
}

var recommendations = []models.Recommendation{
	{
		Priority:    models.CriticalityHigh,
		Title:       "Intervenção Imediata - TEB001",
		Description: "Turbina com criticidade extrema (disponibilidade de apenas 26,24%). Requer inspeção completa e plano de ação urgente.",
		Actions: []string{
			"Inspeção técnica completa em 48h",
			"Análise de causa raiz das 40 falhas registradas",
			"Revisão do plano de manutenção preventiva",
			"Monitoramento contínuo por 30 dias",
		},
		Impact:     "Alto",
		Timeframe:  "48 horas",
		Summary:    "Intervenção imediata na TEB001",
		ReportRank: 1,
	},
	{
		Priority:    models.CriticalityMedium,
		Title:       "Otimização - TEB004 e TEB002",
		Description: "Turbinas com criticidade média necessitam de atenção para melhorar performance e reduzir tempo de reparo.",
		Actions: []string{
			"Revisão dos procedimentos de manutenção",
			"Treinamento da equipe técnica",
			"Implementação de manutenção preditiva",
			"Análise de peças de reposição críticas",
		},
		Impact:     "Médio",
		Timeframe:  "2 semanas",
		Summary:    "Implementar manutenção preditiva",
		ReportRank: 3,
	},
	{
		Priority:    models.CriticalityLow,
		Title:       "Manutenção Preventiva Intensificada",
		Description: "Proporção atual de 5,58:1 (corretiva/preventiva) indica necessidade de reforçar ações preventivas.",
		Actions: []string{
			"Aumentar frequência de inspeções preventivas",
			"Implementar cronograma de manutenção baseado em condição",
			"Capacitação em técnicas preditivas",
			"Revisão de intervalos de manutenção",
		},
		Impact:     "Alto",
		Timeframe:  "1 mês",
		Summary:    "Intensificar manutenção preventiva",
		ReportRank: 2,
	},
	{
		Priority:    models.CriticalityMedium,
		Title:       "Redução do Tempo de Resposta",
		Description: "MTTR médio de 73,46h na TEB001 é crítico. Outras turbinas também podem ser otimizadas.",
		Actions: []string{
			"Análise de logística de peças sobressalentes",
			"Otimização de rotas de manutenção",
			"Implementação de sistema de priorização",
			"Treinamento em diagnóstico rápido",
		},
		Impact:     "Médio",
		Timeframe:  "3 semanas",
		Summary:    "Otimizar tempo de resposta",
		ReportRank: 4,
	},
}

// Recommendations returns a copy of the strategic recommendations in
// display order
func Recommendations() []models.Recommendation {
	out := make([]models.Recommendation, len(recommendations))
	for i, r := range recommendations {
		r.Actions = append([]string(nil), r.Actions...)
		out[i] = r
	}
	return out
}

// ReportRecommendations returns the one-line recommendations printed at the
// end of the summary report, in report order
func ReportRecommendations() []string {
	recs := Recommendations()
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].ReportRank < recs[j].ReportRank })

	lines := make([]string, len(recs))
	for i, r := range recs {
		lines[i] = r.Summary
	}
	return lines
}
