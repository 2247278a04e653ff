package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	"github.com/noah-isme/behavior-tracker-api/internal/service"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
	"github.com/noah-isme/behavior-tracker-api/pkg/response"
	"github.com/noah-isme/behavior-tracker-api/pkg/timerange"
)

type behaviorProvider interface {
	List(ctx context.Context, filter models.BehaviorLogFilter) ([]models.BehaviorLogRow, error)
	Create(ctx context.Context, schoolID, actorID string, req service.CreateBehaviorLogRequest) (*models.BehaviorLog, error)
	Delete(ctx context.Context, id, schoolID string) error
	PurgeMatching(ctx context.Context, schoolID, pattern string) (int64, error)
}

// BehaviorHandler manages behavior log entries.
type BehaviorHandler struct {
	logs behaviorProvider
	now  func() time.Time
}

// NewBehaviorHandler constructs a BehaviorHandler.
func NewBehaviorHandler(logs behaviorProvider) *BehaviorHandler {
	return &BehaviorHandler{logs: logs, now: func() time.Time { return time.Now().UTC() }}
}

// List godoc
// @Summary List behavior logs
// @Tags Behavior
// @Security BearerAuth
// @Produce json
// @Param range query string false "Window token; no lower bound when omitted"
// @Param severity query string false "Severity, comma separated"
// @Param category query string false "Category"
// @Param student_id query string false "Student ID"
// @Param class_id query string false "Class ID"
// @Param limit query int false "Max rows" default(1000)
// @Success 200 {object} response.Envelope
// @Router /logs [get]
func (h *BehaviorHandler) List(c *gin.Context) {
	filter := logFilterFromQuery(c)
	filter.Limit = queryLimit(c, 0)
	if token := c.Query("range"); token != "" {
		filter.From = timerange.ResolveExtended(token, h.now()).From
	}
	rows, err := h.logs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, &response.Pagination{Limit: filter.Limit, TotalCount: len(rows)})
}

// Create godoc
// @Summary Record a behavior log
// @Tags Behavior
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body service.CreateBehaviorLogRequest true "Behavior log"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /logs [post]
func (h *BehaviorHandler) Create(c *gin.Context) {
	var req service.CreateBehaviorLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	log, err := h.logs.Create(c.Request.Context(), schoolScope(c), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, log)
}

// Delete godoc
// @Summary Delete a behavior log
// @Tags Behavior
// @Security BearerAuth
// @Param id path string true "Log ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /logs/{id} [delete]
func (h *BehaviorHandler) Delete(c *gin.Context) {
	if err := h.logs.Delete(c.Request.Context(), c.Param("id"), schoolScope(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Purge godoc
// @Summary Delete logs whose summary matches a pattern
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param pattern query string true "ILIKE pattern, for example %test%"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/logs [delete]
func (h *BehaviorHandler) Purge(c *gin.Context) {
	removed, err := h.logs.PurgeMatching(c.Request.Context(), schoolScope(c), c.Query("pattern"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": removed}, nil)
}
