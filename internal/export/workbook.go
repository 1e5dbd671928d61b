package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"teb-dashboard/internal/dataset"
	"teb-dashboard/internal/models"
)

// Workbook sheet names, in output order
const (
	SheetKPIs          = "KPIs Gerais"
	SheetTurbines      = "Dados das Turbinas"
	SheetTrends        = "Tendências Mensais"
	SheetFailures      = "Falhas Detalhadas"
	SheetEnvironmental = "Impacto Ambiental"
)

// SheetNames lists the workbook sheets in output order
var SheetNames = []string{SheetKPIs, SheetTurbines, SheetTrends, SheetFailures, SheetEnvironmental}

// Sheet is the planned content of one worksheet. A nil row leaves a blank line.
type Sheet struct {
	Name string
	Rows [][]interface{}
}

func fixed2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// PlanWorkbook computes the rows of every sheet. The detailed failures and
// environmental sheets always come from the static base tables, whatever the
// snapshot's period.
func PlanWorkbook(snap *models.PeriodSnapshot) []Sheet {
	kpiRows := [][]interface{}{
		{"Métrica", "Valor"},
		{"Total de Falhas", snap.KPIs.TotalFailures},
		{"Tempo Total de Parada (h)", fixed2(snap.KPIs.TotalDowntime)},
		{"Turbina com Maior Criticidade", snap.KPIs.MostCritical},
		nil,
		{"Classificação", "Quantidade"},
	}
	for _, code := range models.ClassCodes {
		kpiRows = append(kpiRows, []interface{}{dataset.ClassLabel(code), snap.KPIs.EventsByClass[code]})
	}

	turbineRows := [][]interface{}{
		{"Turbina", "Falhas", "Duração Total (h)", "Score de Criticidade", "MTBF (h)", "MTTR (h)", "Disponibilidade (%)", "Criticidade"},
	}
	for _, t := range snap.Turbines {
		turbineRows = append(turbineRows, []interface{}{
			t.Name,
			t.Failures,
			fixed2(t.TotalDowntime),
			fixed2(t.CriticalityScore),
			fixed2(t.MTBF),
			fixed2(t.MTTR),
			fixed2(t.Availability),
			string(t.Criticality),
		})
	}

	trendRows := [][]interface{}{{"Mês", "Falhas"}}
	for _, p := range snap.Trends {
		trendRows = append(trendRows, []interface{}{p.Month, p.Failures})
	}

	failureRows := [][]interface{}{{"Turbina", "Classificação", "Quantidade"}}
	for _, row := range dataset.FailuresByClass() {
		for _, c := range row.Counts {
			failureRows = append(failureRows, []interface{}{row.TurbineID, dataset.ClassLabel(c.Code), c.Count})
		}
	}

	envRows := [][]interface{}{{"Turbina", "Tempo de Parada por Condições Ambientais (h)"}}
	for _, e := range dataset.EnvironmentalImpactTable() {
		envRows = append(envRows, []interface{}{e.TurbineID, fixed2(e.Hours)})
	}

	return []Sheet{
		{Name: SheetKPIs, Rows: kpiRows},
		{Name: SheetTurbines, Rows: turbineRows},
		{Name: SheetTrends, Rows: trendRows},
		{Name: SheetFailures, Rows: failureRows},
		{Name: SheetEnvironmental, Rows: envRows},
	}
}

// BuildWorkbook renders the five-sheet workbook of a snapshot as XLSX
func BuildWorkbook(snap *models.PeriodSnapshot) (*Artifact, error) {
	body, err := guard(KindWorkbook, func() ([]byte, error) {
		return renderWorkbook(PlanWorkbook(snap))
	})
	if err != nil {
		return nil, err
	}
	return &Artifact{Kind: KindWorkbook, Filename: WorkbookFilename, ContentType: ContentTypeXLSX, Body: body}, nil
}

func renderWorkbook(sheets []Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			// reuse the default sheet so the workbook holds exactly len(sheets)
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return nil, fmt.Errorf("renaming sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return nil, fmt.Errorf("creating sheet %q: %w", sheet.Name, err)
		}

		for r, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, err
			}
			values := row
			if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
				return nil, fmt.Errorf("writing %s!%s: %w", sheet.Name, cell, err)
			}
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
