package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reco-letter-api/internal/service"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
	"github.com/noah-isme/reco-letter-api/pkg/response"
)

// ReportHandler exposes the operator reporting endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Overdue godoc
// @Summary Overdue request report
// @Tags Reports
// @Produce json
// @Param format query string false "Output format: json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/overdue [get]
func (h *ReportHandler) Overdue(c *gin.Context) {
	claims := claimsFromContext(c)
	switch c.DefaultQuery("format", "json") {
	case "json":
		rows, err := h.reports.Overdue(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, rows, nil)
	case "csv":
		out, err := h.reports.OverdueCSV(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename("csv")))
		c.Data(http.StatusOK, "text/csv", out)
	case "pdf":
		out, err := h.reports.OverduePDF(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename("pdf")))
		c.Data(http.StatusOK, "application/pdf", out)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be json, csv or pdf"))
	}
}

func reportFilename(ext string) string {
	return fmt.Sprintf("overdue-requests-%s.%s", time.Now().UTC().Format("20060102"), ext)
}
