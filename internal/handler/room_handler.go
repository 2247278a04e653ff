package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	"github.com/noah-isme/behavior-tracker-api/internal/service"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
	"github.com/noah-isme/behavior-tracker-api/pkg/response"
)

type roomProvider interface {
	Ensure(ctx context.Context, name, schoolID, createdBy string) (*models.RoomUpsertResult, error)
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
}

type messageProvider interface {
	List(ctx context.Context, roomID, schoolID string, limit int) ([]models.Message, error)
	Post(ctx context.Context, roomID, schoolID, senderID string, req service.PostMessageRequest) (*models.Message, error)
}

// ensureRoomRequest is the POST /rooms payload.
type ensureRoomRequest struct {
	Name     string `json:"name"`
	SchoolID string `json:"school_id"`
}

// RoomHandler manages meeting rooms and their messages.
type RoomHandler struct {
	rooms    roomProvider
	messages messageProvider
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms roomProvider, messages messageProvider) *RoomHandler {
	return &RoomHandler{rooms: rooms, messages: messages}
}

// List godoc
// @Summary List rooms
// @Tags Rooms
// @Security BearerAuth
// @Produce json
// @Param school_id query string false "School ID"
// @Param name query string false "Exact name, case-insensitive"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	schoolID, err := resolveSchool(c, c.Query("school_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	rooms, err := h.rooms.List(c.Request.Context(), models.RoomFilter{SchoolID: schoolID, Name: strings.TrimSpace(c.Query("name"))})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Ensure godoc
// @Summary Create a room if it does not exist
// @Description Idempotent on (school_id, lower(name)). Meta reports existed, created or conflict.
// @Tags Rooms
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body ensureRoomRequest true "Room"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) Ensure(c *gin.Context) {
	var req ensureRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	schoolID, err := resolveSchool(c, req.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.rooms.Ensure(c.Request.Context(), req.Name, schoolID, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Room, nil, result.Meta())
}

// Messages godoc
// @Summary List room messages
// @Tags Rooms
// @Security BearerAuth
// @Produce json
// @Param id path string true "Room ID"
// @Param limit query int false "Max messages" default(50)
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id}/messages [get]
func (h *RoomHandler) Messages(c *gin.Context) {
	limit := queryLimit(c, 50)
	messages, err := h.messages.List(c.Request.Context(), c.Param("id"), schoolScope(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, &response.Pagination{Limit: limit, TotalCount: len(messages)})
}

// PostMessage godoc
// @Summary Post a message into a room
// @Tags Rooms
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.PostMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id}/messages [post]
func (h *RoomHandler) PostMessage(c *gin.Context) {
	var req service.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	msg, err := h.messages.Post(c.Request.Context(), c.Param("id"), schoolScope(c), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
