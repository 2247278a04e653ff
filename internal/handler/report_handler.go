package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/behavior-tracker-api/internal/service"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
	"github.com/noah-isme/behavior-tracker-api/pkg/response"
)

type reportProvider interface {
	EnqueueRisk(ctx context.Context, schoolID string, req service.RiskReportRequest, now time.Time) (*service.QueuedReport, error)
	SignedURL(ctx context.Context, schoolID, relPath string) (*service.SignedReportURL, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler queues rendered risk reports and serves them through signed links.
type ReportHandler struct {
	reports reportProvider
	now     func() time.Time
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(reports reportProvider) *ReportHandler {
	return &ReportHandler{reports: reports, now: func() time.Time { return time.Now().UTC() }}
}

// EnqueueRisk godoc
// @Summary Queue a risk report render
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body service.RiskReportRequest true "Range and format"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/risk [post]
func (h *ReportHandler) EnqueueRisk(c *gin.Context) {
	var req service.RiskReportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
			return
		}
	}
	queued, err := h.reports.EnqueueRisk(c.Request.Context(), schoolScope(c), req, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, queued, nil)
}

// SignedURL godoc
// @Summary Issue a signed download link for a rendered report
// @Tags Reports
// @Security BearerAuth
// @Produce json
// @Param path query string true "Report path returned when queued"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/url [get]
func (h *ReportHandler) SignedURL(c *gin.Context) {
	signed, err := h.reports.SignedURL(c.Request.Context(), schoolScope(c), c.Query("path"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed, nil)
}

// Download godoc
// @Summary Download a report through a signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.reports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck
	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read report"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, nil)
}
