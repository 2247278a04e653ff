package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
)

const roomColumns = "id, name, school_id, meeting_url, created_by, inserted_at"

// RoomRepository manages persistence for rooms. Uniqueness of
// (school_id, lower(name)) is enforced by the rooms_school_name_key index.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// FindByName looks a room up case-insensitively. It returns sql.ErrNoRows when absent.
func (r *RoomRepository) FindByName(ctx context.Context, schoolID, name string) (*models.Room, error) {
	query := "SELECT " + roomColumns + " FROM rooms WHERE school_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1"
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, schoolID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	return &room, nil
}

// GetByID fetches a room by id.
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := r.db.GetContext(ctx, &room, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

// List returns rooms for a school ordered by name. A non-empty name filters case-insensitively.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		conditions = append(conditions, fmt.Sprintf("LOWER(name) = LOWER($%d)", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE %s ORDER BY name ASC", roomColumns, strings.Join(conditions, " AND "))
	rooms := make([]models.Room, 0)
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Insert creates a room and returns the stored representation. A unique
// violation is returned wrapped so callers can detect it with database.IsUniqueViolation.
func (r *RoomRepository) Insert(ctx context.Context, room *models.Room) (*models.Room, error) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.InsertedAt.IsZero() {
		room.InsertedAt = time.Now().UTC()
	}
	query := `INSERT INTO rooms (id, name, school_id, meeting_url, created_by, inserted_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + roomColumns
	var stored models.Room
	if err := r.db.GetContext(ctx, &stored, query, room.ID, room.Name, room.SchoolID, room.MeetingURL, room.CreatedBy, room.InsertedAt); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return &stored, nil
}
