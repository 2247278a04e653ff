package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
)

type messageRepository interface {
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	Create(ctx context.Context, msg *models.Message) error
}

type roomGetter interface {
	Get(ctx context.Context, id, schoolID string) (*models.Room, error)
}

// PostMessageRequest is the payload for a new room message.
type PostMessageRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

// MessageService reads and writes room messages.
type MessageService struct {
	repo      messageRepository
	rooms     roomGetter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs a MessageService.
func NewMessageService(repo messageRepository, rooms roomGetter, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, rooms: rooms, validator: validate, logger: logger}
}

// List returns the newest messages of a room.
func (s *MessageService) List(ctx context.Context, roomID, schoolID string, limit int) ([]models.Message, error) {
	if _, err := s.rooms.Get(ctx, roomID, schoolID); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list messages")
	}
	return messages, nil
}

// Post stores a message from senderID.
func (s *MessageService) Post(ctx context.Context, roomID, schoolID, senderID string, req PostMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if _, err := s.rooms.Get(ctx, roomID, schoolID); err != nil {
		return nil, err
	}
	msg := &models.Message{RoomID: roomID, SenderID: senderID, Body: req.Body}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, appErrors.Internal(err, "failed to post message")
	}
	return msg, nil
}
