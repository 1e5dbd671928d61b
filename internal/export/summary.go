package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"teb-dashboard/internal/dataset"
	"teb-dashboard/internal/models"
)

// Summary report geometry, in millimetres on A4 portrait
const (
	summaryMarginX      = 20.0
	summaryDetailX      = 25.0
	summaryTopMargin    = 20.0
	summaryFirstBlockY  = 105.0
	summaryPageBreakY   = 250.0
	summaryBlockAdvance = 45.0
	summaryLineStep     = 8.0
	trendFirstLineY     = 30.0
	trendLineStep       = 10.0
)

// Font sizes
const (
	fontTitle   = 20.0
	fontSection = 16.0
	fontBody    = 12.0
)

// TextLine is a single piece of text placed at an absolute position
type TextLine struct {
	X    float64
	Y    float64
	Size float64
	Text string
}

// Page is one planned page of a text report
type Page struct {
	Lines []TextLine
	// Turbines lists the ids whose detail block starts on this page
	Turbines []string
}

// SummaryLayout is the planned content of the summary report
type SummaryLayout struct {
	Pages []Page
}

// PlanSummary lays out the summary report of a snapshot. Each turbine block
// is emitted whole on a single page.
func PlanSummary(snap *models.PeriodSnapshot) SummaryLayout {
	var layout SummaryLayout
	page := &Page{}
	add := func(x, y, size float64, text string) {
		page.Lines = append(page.Lines, TextLine{X: x, Y: y, Size: size, Text: text})
	}
	newPage := func() {
		layout.Pages = append(layout.Pages, *page)
		page = &Page{}
	}

	add(summaryMarginX, 20, fontTitle, "Relatório de Manutenção - Parque Eólico TEB")
	add(summaryMarginX, 30, fontBody, "Período: "+dataset.ReportPeriod)

	add(summaryMarginX, 45, fontSection, "KPIs Principais")
	add(summaryMarginX, 55, fontBody, fmt.Sprintf("Total de Falhas: %d", snap.KPIs.TotalFailures))
	add(summaryMarginX, 65, fontBody, fmt.Sprintf("Tempo Total de Parada: %.2fh", snap.KPIs.TotalDowntime))
	add(summaryMarginX, 75, fontBody, "Turbina com Maior Criticidade: "+snap.KPIs.MostCritical)

	add(summaryMarginX, 95, fontSection, "Dados das Turbinas")

	y := summaryFirstBlockY
	for _, t := range snap.Turbines {
		if y > summaryPageBreakY {
			newPage()
			y = summaryTopMargin
		}
		page.Turbines = append(page.Turbines, t.ID)
		add(summaryMarginX, y, fontBody, t.Name+":")
		add(summaryDetailX, y+summaryLineStep, fontBody, fmt.Sprintf("  Falhas: %d", t.Failures))
		add(summaryDetailX, y+2*summaryLineStep, fontBody, fmt.Sprintf("  MTTR: %.2fh", t.MTTR))
		add(summaryDetailX, y+3*summaryLineStep, fontBody, fmt.Sprintf("  Disponibilidade: %.2f%%", t.Availability))
		add(summaryDetailX, y+4*summaryLineStep, fontBody, "  Criticidade: "+string(t.Criticality))
		y += summaryBlockAdvance
	}

	newPage()
	add(summaryMarginX, 20, fontSection, "Tendências Mensais")
	y = trendFirstLineY
	for _, p := range snap.Trends {
		add(summaryMarginX, y, fontBody, fmt.Sprintf("%s: %d falhas", p.Month, p.Failures))
		y += trendLineStep
	}

	// recommendations continue on the trends page, below the last trend line
	add(summaryMarginX, y+20, fontSection, "Recomendações Principais")
	for i, rec := range dataset.ReportRecommendations() {
		add(summaryMarginX, y+35+float64(i)*10, fontBody, fmt.Sprintf("%d. %s", i+1, rec))
	}
	layout.Pages = append(layout.Pages, *page)

	return layout
}

// BuildSummaryReport renders the summary report of a snapshot as an A4 PDF
func BuildSummaryReport(snap *models.PeriodSnapshot) (*Artifact, error) {
	body, err := guard(KindSummary, func() ([]byte, error) {
		return renderText(PlanSummary(snap), "P")
	})
	if err != nil {
		return nil, err
	}
	return &Artifact{Kind: KindSummary, Filename: SummaryFilename, ContentType: ContentTypePDF, Body: body}, nil
}

// renderText draws a planned layout with the core Helvetica font
func renderText(layout SummaryLayout, orientation string) ([]byte, error) {
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range layout.Pages {
		pdf.AddPage()
		for _, line := range page.Lines {
			pdf.SetFont("Helvetica", "", line.Size)
			pdf.Text(line.X, line.Y, tr(line.Text))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}
