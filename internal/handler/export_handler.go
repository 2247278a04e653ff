package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	"github.com/noah-isme/behavior-tracker-api/internal/service"
	"github.com/noah-isme/behavior-tracker-api/pkg/response"
	"github.com/noah-isme/behavior-tracker-api/pkg/timerange"
)

type logExporter interface {
	LogsCSV(ctx context.Context, filter models.BehaviorLogFilter, window timerange.Window, now time.Time) (*service.ExportFile, error)
	StudentCSV(ctx context.Context, studentID, schoolID string, window timerange.Window, now time.Time) (*service.ExportFile, error)
	ClassCSV(ctx context.Context, classID, schoolID string, window timerange.Window, now time.Time) (*service.ExportFile, error)
}

// ExportHandler streams behavior log CSV downloads.
type ExportHandler struct {
	exports      logExporter
	defaultRange string
	now          func() time.Time
}

// NewExportHandler constructs an ExportHandler. defaultRange applies when the
// range token is missing or unrecognised.
func NewExportHandler(exports logExporter, defaultRange string) *ExportHandler {
	return &ExportHandler{exports: exports, defaultRange: defaultRange, now: func() time.Time { return time.Now().UTC() }}
}

func (h *ExportHandler) window(c *gin.Context, now time.Time) timerange.Window {
	return timerange.ResolveWith(c.Query("range"), h.defaultRange, false, now)
}

// Logs godoc
// @Summary Export behavior logs
// @Tags Exports
// @Security BearerAuth
// @Produce text/csv
// @Param range query string false "Window token"
// @Param severity query string false "Severity, comma separated"
// @Param category query string false "Category"
// @Param student_id query string false "Student ID"
// @Param class_id query string false "Class ID"
// @Success 200 {file} file
// @Failure 500 {string} string
// @Router /logs-export [get]
func (h *ExportHandler) Logs(c *gin.Context) {
	now := h.now()
	file, err := h.exports.LogsCSV(c.Request.Context(), logFilterFromQuery(c), h.window(c, now), now)
	h.write(c, file, err)
}

// Student godoc
// @Summary Export one student's behavior logs
// @Tags Exports
// @Security BearerAuth
// @Produce text/csv
// @Param id path string true "Student ID"
// @Param range query string false "Window token"
// @Success 200 {file} file
// @Failure 404 {string} string
// @Router /students/{id}/logs-export [get]
func (h *ExportHandler) Student(c *gin.Context) {
	now := h.now()
	file, err := h.exports.StudentCSV(c.Request.Context(), c.Param("id"), schoolScope(c), h.window(c, now), now)
	h.write(c, file, err)
}

// Class godoc
// @Summary Export one class's behavior logs
// @Tags Exports
// @Security BearerAuth
// @Produce text/csv
// @Param id path string true "Class ID"
// @Param range query string false "Window token"
// @Success 200 {file} file
// @Failure 404 {string} string
// @Router /classes/{id}/logs-export [get]
func (h *ExportHandler) Class(c *gin.Context) {
	now := h.now()
	file, err := h.exports.ClassCSV(c.Request.Context(), c.Param("id"), schoolScope(c), h.window(c, now), now)
	h.write(c, file, err)
}

func (h *ExportHandler) write(c *gin.Context, file *service.ExportFile, err error) {
	if err != nil {
		response.PlainError(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
