package models

// Criticality is the coarse severity tier assigned to a turbine
type Criticality string

const (
	CriticalityHigh   Criticality = "alta"
	CriticalityMedium Criticality = "media"
	CriticalityLow    Criticality = "baixa"
)

// ClassCode identifies one of the five maintenance event classifications
type ClassCode int

const (
	ClassCorrective          ClassCode = 1
	ClassPreventive          ClassCode = 2
	ClassOwnerRequested      ClassCode = 3
	ClassEnvironmental       ClassCode = 4
	ClassScheduledCorrective ClassCode = 5
)

// ClassCodes lists every classification code in ascending order
var ClassCodes = []ClassCode{
	ClassCorrective,
	ClassPreventive,
	ClassOwnerRequested,
	ClassEnvironmental,
	ClassScheduledCorrective,
}

// Point is a 2D map coordinate
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TurbineRecord holds the maintenance figures of one turbine for a period
type TurbineRecord struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Failures         int         `json:"falhas"`
	TotalDowntime    float64     `json:"duracaoTotal"` // hours
	CriticalityScore float64     `json:"criticidadeScore"`
	MTBF             float64     `json:"mtbf"`            // hours
	MTTR             float64     `json:"mttr"`            // hours
	Availability     float64     `json:"disponibilidade"` // percentage
	Criticality      Criticality `json:"criticidade"`
	Position         Point       `json:"position"`
}

// KPISet aggregates the headline indicators of a period
type KPISet struct {
	TotalFailures int               `json:"totalFalhas"`
	TotalDowntime float64           `json:"tempoTotalParada"` // hours
	MostCritical  string            `json:"turbinaMaiorCriticidade"`
	EventsByClass map[ClassCode]int `json:"eventosPorClassificacao"`
}

// TrendPoint is the failure count of one month (or a labelled synthetic period)
type TrendPoint struct {
	Month    string `json:"mes"`
	Failures int    `json:"falhas"`
}

// PeriodSnapshot bundles the KPIs, trend and turbines of a reporting period.
// Snapshots returned by the dataset package are shared and must not be mutated.
type PeriodSnapshot struct {
	Key         string          `json:"key"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	KPIs        KPISet          `json:"kpis"`
	Trends      []TrendPoint    `json:"tendencias"`
	Turbines    []TurbineRecord `json:"turbinas"`
}

// PeriodInfo describes a selectable period filter entry
type PeriodInfo struct {
	Key         string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// RankingEntry is one position in a benchmark ranking
type RankingEntry struct {
	Position  int     `json:"position"`
	TurbineID string  `json:"turbine_id"`
	Value     float64 `json:"value"`
	Tier      string  `json:"tier"`
}

// Ranking orders turbines by a single metric
type Ranking struct {
	Metric  string         `json:"metric"`
	Entries []RankingEntry `json:"entries"`
}

// Recommendation is a prioritised maintenance action plan
type Recommendation struct {
	Priority    Criticality `json:"priority"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Actions     []string    `json:"actions"`
	Impact      string      `json:"impact"`
	Timeframe   string      `json:"timeframe"`
	// Summary is the one-line form printed in the summary report
	Summary string `json:"summary"`
	// ReportRank orders the summary lines in the report, starting at 1
	ReportRank int `json:"report_rank"`
}
