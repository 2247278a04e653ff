package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
)

// SchoolRepository persists schools.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns every school ordered by name.
func (r *SchoolRepository) List(ctx context.Context) ([]models.School, error) {
	schools := make([]models.School, 0)
	if err := r.db.SelectContext(ctx, &schools, "SELECT id, name, created_at FROM schools ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// FindByID fetches one school. It returns sql.ErrNoRows when absent.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	if err := r.db.GetContext(ctx, &school, "SELECT id, name, created_at FROM schools WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find school: %w", err)
	}
	return &school, nil
}

// Create inserts a school.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	if school.CreatedAt.IsZero() {
		school.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, `INSERT INTO schools (id, name, created_at) VALUES (:id, :name, :created_at)`, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}
