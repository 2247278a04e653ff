package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	"github.com/noah-isme/behavior-tracker-api/pkg/database"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
)

type roomRepository interface {
	FindByName(ctx context.Context, schoolID, name string) (*models.Room, error)
	GetByID(ctx context.Context, id string) (*models.Room, error)
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
	Insert(ctx context.Context, room *models.Room) (*models.Room, error)
}

// RoomService manages rooms. Room creation is idempotent per (school, case-insensitive name).
type RoomService struct {
	repo    roomRepository
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRoomService constructs a RoomService.
func NewRoomService(repo roomRepository, metrics *MetricsService, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, metrics: metrics, logger: logger}
}

// Ensure returns the room named name in schoolID, creating it when absent.
//
// The lookup runs first. An insert that loses a race against a concurrent
// creator fails with a unique violation, after which the winner's row is
// read back and reported as a conflict.
func (s *RoomService) Ensure(ctx context.Context, name, schoolID, createdBy string) (*models.RoomUpsertResult, error) {
	name = strings.TrimSpace(name)
	schoolID = strings.TrimSpace(schoolID)
	if name == "" {
		return nil, appErrors.Required("name")
	}
	if schoolID == "" {
		return nil, appErrors.Required("school_id")
	}

	existing, err := s.repo.FindByName(ctx, schoolID, name)
	if err == nil {
		s.metrics.RecordRoomUpsert("existed")
		return &models.RoomUpsertResult{Room: existing, Existed: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to look up room")
	}

	room := &models.Room{Name: name, SchoolID: schoolID}
	if createdBy != "" {
		room.CreatedBy = &createdBy
	}
	stored, err := s.repo.Insert(ctx, room)
	if err == nil {
		s.metrics.RecordRoomUpsert("created")
		s.logger.Info("room created", zap.String("room_id", stored.ID), zap.String("school_id", schoolID))
		return &models.RoomUpsertResult{Room: stored, Created: true}, nil
	}
	if !database.IsUniqueViolation(err) {
		return nil, appErrors.Internal(err, "failed to create room")
	}

	winner, err := s.repo.FindByName(ctx, schoolID, name)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to reload room after conflict")
	}
	s.metrics.RecordRoomUpsert("conflict")
	s.logger.Debug("room create raced", zap.String("room_id", winner.ID), zap.String("school_id", schoolID))
	return &models.RoomUpsertResult{Room: winner, Conflict: true}, nil
}

// List returns rooms matching the filter.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	filter.Name = strings.TrimSpace(filter.Name)
	rooms, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list rooms")
	}
	return rooms, nil
}

// Get fetches a room visible to schoolID. Rooms of other schools read as not found.
func (s *RoomService) Get(ctx context.Context, id, schoolID string) (*models.Room, error) {
	room, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Internal(err, "failed to load room")
	}
	if schoolID != "" && room.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
	}
	return room, nil
}
