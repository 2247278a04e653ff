package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
)

// MessageRepository persists room messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs a message repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListByRoom returns the newest messages in a room.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	query := fmt.Sprintf("SELECT id, room_id, sender_id, body, created_at FROM messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT %d", clampLimit(limit, 50, 500))
	messages := make([]models.Message, 0)
	if err := r.db.SelectContext(ctx, &messages, query, roomID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// Create stores a message.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO messages (id, room_id, sender_id, body, created_at) VALUES (:id, :room_id, :sender_id, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}
