package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"pipecrm/internal/pipeline"
)

// Generator produces the pipeline report; an interface so handlers can be
// tested with a stub.
type Generator interface {
	PipelineReport(data ReportData) ([]byte, error)
}

type ReportData struct {
	TenantID    string
	GeneratedAt time.Time
	Groups      []pipeline.StageGroup
}

// ReportGenerator renders board snapshots with gofpdf core fonts.
type ReportGenerator struct{}

func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{}
}

func (g *ReportGenerator) PipelineReport(data ReportData) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Pipeline report", false)
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, "Pipeline report", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, fmt.Sprintf("Tenant: %s", data.TenantID), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, fmt.Sprintf("Generated: %s", data.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	doc.Ln(4)

	for _, group := range data.Groups {
		totals := make(map[string]float64)
		for _, d := range group.Deals {
			totals[d.Currency] += d.Value
		}

		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 8, fmt.Sprintf("%s (%d)", group.Stage.Label, len(group.Deals)), "B", 1, "L", false, 0, "")

		doc.SetFont("Helvetica", "", 10)
		for currency, total := range totals {
			doc.CellFormat(0, 6, fmt.Sprintf("Total %s %.2f", currency, total), "", 1, "L", false, 0, "")
		}
		for _, d := range group.Deals {
			line := fmt.Sprintf("%s - %s - %s %.2f (%d%%)", d.Name, d.Company, d.Currency, d.Value, d.Probability)
			doc.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
		}
		if len(group.Deals) == 0 {
			doc.CellFormat(0, 6, "No deals in this stage", "", 1, "L", false, 0, "")
		}
		doc.Ln(3)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pipeline report: %w", err)
	}
	return buf.Bytes(), nil
}
