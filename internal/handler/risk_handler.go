package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/behavior-tracker-api/internal/middleware"
	"github.com/noah-isme/behavior-tracker-api/internal/models"
	"github.com/noah-isme/behavior-tracker-api/internal/service"
	"github.com/noah-isme/behavior-tracker-api/pkg/response"
	"github.com/noah-isme/behavior-tracker-api/pkg/timerange"
)

type riskProvider interface {
	Window(token string, now time.Time) timerange.Window
	Compute(ctx context.Context, schoolID string, window timerange.Window) (*models.RiskReport, bool, error)
	Report(ctx context.Context, schoolID string, window timerange.Window) (*models.RiskReport, bool)
}

type riskFileRenderer interface {
	RiskFile(report *models.RiskReport, format service.ExportFormat, now time.Time) (*service.ExportFile, error)
}

// RiskHandler serves the aggregated risk view and its file export.
type RiskHandler struct {
	risk   riskProvider
	render riskFileRenderer
	now    func() time.Time
}

// NewRiskHandler constructs a RiskHandler.
func NewRiskHandler(risk riskProvider, render riskFileRenderer) *RiskHandler {
	return &RiskHandler{risk: risk, render: render, now: func() time.Time { return time.Now().UTC() }}
}

// View godoc
// @Summary Behavior risk view
// @Description Aggregates behavior logs by student, class and room. Store failures degrade to an empty aggregate.
// @Tags Risk
// @Security BearerAuth
// @Produce json
// @Param range query string false "Window token: 7d, 30d, 90d or 12m"
// @Param school_id query string false "School (admins without a bound school)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /risk [get]
func (h *RiskHandler) View(c *gin.Context) {
	window := h.risk.Window(c.Query("range"), h.now())
	report, hit := h.risk.Report(c.Request.Context(), schoolScope(c), window)
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export risk buckets
// @Tags Risk
// @Security BearerAuth
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param range query string false "Window token"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {string} string
// @Failure 500 {string} string
// @Router /risk-export [get]
func (h *RiskHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.PlainError(c, err)
		return
	}
	now := h.now()
	report, _, err := h.risk.Compute(c.Request.Context(), schoolScope(c), h.risk.Window(c.Query("range"), now))
	if err != nil {
		response.PlainError(c, err)
		return
	}
	file, err := h.render.RiskFile(report, format, now)
	if err != nil {
		response.PlainError(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
