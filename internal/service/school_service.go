package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context) ([]models.School, error)
	Create(ctx context.Context, school *models.School) error
}

// CreateSchoolRequest is the payload for a new school.
type CreateSchoolRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// SchoolService manages schools.
type SchoolService struct {
	repo      schoolRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(repo schoolRepository, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, validator: validate, logger: logger}
}

// List returns all schools.
func (s *SchoolService) List(ctx context.Context) ([]models.School, error) {
	schools, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list schools")
	}
	return schools, nil
}

// Create adds a school.
func (s *SchoolService) Create(ctx context.Context, req CreateSchoolRequest) (*models.School, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	school := &models.School{Name: req.Name}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Internal(err, "failed to create school")
	}
	s.logger.Info("school created", zap.String("school_id", school.ID))
	return school, nil
}
