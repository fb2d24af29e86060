package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pipecrm/internal/pdf"
	"pipecrm/internal/pipeline"
	"pipecrm/internal/services"
)

type ReportHandler struct {
	Service   *services.EngineService
	Generator pdf.Generator
}

func NewReportHandler(service *services.EngineService, gen pdf.Generator) *ReportHandler {
	return &ReportHandler{Service: service, Generator: gen}
}

// Pipeline renders the current board as a PDF.
func (h *ReportHandler) Pipeline(c *gin.Context) {
	tenantID := tenantFrom(c)
	groups, err := h.Service.BoardView(tenantID, pipeline.Filter{})
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Generator.PipelineReport(pdf.ReportData{
		TenantID:    tenantID,
		GeneratedAt: time.Now(),
		Groups:      groups,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="pipeline.pdf"`)
	c.Data(http.StatusOK, "application/pdf", out)
}
