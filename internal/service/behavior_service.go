package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
)

type behaviorRepository interface {
	ListRows(ctx context.Context, filter models.BehaviorLogFilter) ([]models.BehaviorLogRow, error)
	Create(ctx context.Context, log *models.BehaviorLog) error
	Delete(ctx context.Context, id, schoolID string) error
	DeleteMatching(ctx context.Context, schoolID, pattern string) (int64, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CreateBehaviorLogRequest describes the create payload.
type CreateBehaviorLogRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	ClassID   *string `json:"class_id"`
	Room      *string `json:"room"`
	Category  string  `json:"category" validate:"required,max=64"`
	Severity  string  `json:"severity" validate:"required,severity"`
	Summary   string  `json:"summary" validate:"required,max=2000"`
}

// BehaviorService handles behavior logs.
type BehaviorService struct {
	repo      behaviorRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBehaviorService constructs the service. cache may be nil.
func NewBehaviorService(repo behaviorRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *BehaviorService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerSeverity(validate)
	return &BehaviorService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns joined log rows, newest first.
func (s *BehaviorService) List(ctx context.Context, filter models.BehaviorLogFilter) ([]models.BehaviorLogRow, error) {
	rows, err := s.repo.ListRows(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list behavior logs")
	}
	return rows, nil
}

// Create records a behavior log on behalf of actorID. Every log belongs to a school.
func (s *BehaviorService) Create(ctx context.Context, schoolID, actorID string, req CreateBehaviorLogRequest) (*models.BehaviorLog, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	schoolID = strings.TrimSpace(schoolID)
	if schoolID == "" {
		return nil, appErrors.Required("school_id")
	}
	log := &models.BehaviorLog{
		SchoolID:  &schoolID,
		StudentID: &req.StudentID,
		ClassID:   nonEmpty(req.ClassID),
		Room:      nonEmpty(req.Room),
		Category:  strings.TrimSpace(req.Category),
		Severity:  string(models.NormalizeSeverity(req.Severity)),
		Summary:   req.Summary,
	}
	if actorID != "" {
		log.CreatedBy = &actorID
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return nil, appErrors.Internal(err, "failed to create behavior log")
	}
	s.invalidate(ctx, schoolID)
	return log, nil
}

// Delete removes one log.
func (s *BehaviorService) Delete(ctx context.Context, id, schoolID string) error {
	if err := s.repo.Delete(ctx, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "behavior log not found")
		}
		return appErrors.Internal(err, "failed to delete behavior log")
	}
	s.invalidate(ctx, schoolID)
	return nil
}

// PurgeMatching removes logs whose summary matches pattern (ILIKE syntax).
func (s *BehaviorService) PurgeMatching(ctx context.Context, schoolID, pattern string) (int64, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return 0, appErrors.Required("pattern")
	}
	removed, err := s.repo.DeleteMatching(ctx, schoolID, pattern)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to purge behavior logs")
	}
	s.logger.Info("behavior logs purged", zap.String("school_id", schoolID), zap.String("pattern", pattern), zap.Int64("removed", removed))
	if removed > 0 {
		s.invalidate(ctx, schoolID)
	}
	return removed, nil
}

func (s *BehaviorService) invalidate(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, riskCachePattern(schoolID))
	if schoolID != "" {
		// the unscoped view aggregates every school
		_ = s.cache.Invalidate(ctx, riskCacheKey("", "*"))
	}
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
