package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
)

const defaultLogLimit = 1000

const behaviorLogRowSelect = `SELECT l.id, l.school_id, l.student_id, l.class_id, l.room, l.category, l.severity, l.summary, l.created_by, l.created_at,
        s.first_name AS student_first_name, s.last_name AS student_last_name, s.code AS student_code,
        c.name AS class_name, c.room AS class_room
        FROM behavior_logs l LEFT JOIN students s ON s.id = l.student_id LEFT JOIN classes c ON c.id = l.class_id`

// BehaviorRepository manages persistence for behavior logs.
type BehaviorRepository struct {
	db *sqlx.DB
}

// NewBehaviorRepository constructs a new repository.
func NewBehaviorRepository(db *sqlx.DB) *BehaviorRepository {
	return &BehaviorRepository{db: db}
}

// ListRows returns logs joined with student and class display columns, newest first.
// Ties on created_at are broken by id so filter.Before can page through the set.
func (r *BehaviorRepository) ListRows(ctx context.Context, filter models.BehaviorLogFilter) ([]models.BehaviorLogRow, error) {
	where, args := buildLogWhere(filter)
	query := fmt.Sprintf("%s WHERE %s ORDER BY l.created_at DESC, l.id DESC LIMIT %d", behaviorLogRowSelect, where, clampLimit(filter.Limit, defaultLogLimit, models.MaxLogPageSize))
	rows := make([]models.BehaviorLogRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list behavior logs: %w", err)
	}
	return rows, nil
}

// Create inserts a new behavior log.
func (r *BehaviorRepository) Create(ctx context.Context, log *models.BehaviorLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO behavior_logs (id, school_id, student_id, class_id, room, category, severity, summary, created_by, created_at)
VALUES (:id, :school_id, :student_id, :class_id, :room, :category, :severity, :summary, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create behavior log: %w", err)
	}
	return nil
}

// Delete removes a single log. It returns sql.ErrNoRows when nothing matched.
func (r *BehaviorRepository) Delete(ctx context.Context, id, schoolID string) error {
	query := "DELETE FROM behavior_logs WHERE id = $1"
	args := []interface{}{id}
	if schoolID != "" {
		query += " AND school_id = $2"
		args = append(args, schoolID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete behavior log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete behavior log: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteMatching removes every log whose summary matches the ILIKE pattern and
// returns how many rows were removed.
func (r *BehaviorRepository) DeleteMatching(ctx context.Context, schoolID, pattern string) (int64, error) {
	query := "DELETE FROM behavior_logs WHERE summary ILIKE $1"
	args := []interface{}{pattern}
	if schoolID != "" {
		query += " AND school_id = $2"
		args = append(args, schoolID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete behavior logs matching: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete behavior logs matching: %w", err)
	}
	return affected, nil
}

func buildLogWhere(filter models.BehaviorLogFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.SchoolID != "" {
		add("l.school_id = $%d", filter.SchoolID)
	}
	if filter.From != nil {
		add("l.created_at >= $%d", filter.From.UTC())
	}
	if severities := splitSeverities(filter.Severity); len(severities) == 1 {
		add("l.severity = $%d", severities[0])
	} else if len(severities) > 1 {
		add("l.severity = ANY($%d)", pq.Array(severities))
	}
	if filter.Category != "" {
		add("l.category = $%d", filter.Category)
	}
	if filter.StudentID != "" {
		add("l.student_id = $%d", filter.StudentID)
	}
	if filter.ClassID != "" {
		add("l.class_id = $%d", filter.ClassID)
	}
	if filter.Before != nil {
		args = append(args, filter.Before.CreatedAt.UTC(), filter.Before.ID)
		conditions = append(conditions, fmt.Sprintf("(l.created_at, l.id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

// splitSeverities accepts a single severity or a comma separated list.
func splitSeverities(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.ToLower(strings.TrimSpace(part)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
