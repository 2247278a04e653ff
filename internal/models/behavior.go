package models

import (
	"strings"
	"time"
)

// Severity grades a behavior log entry.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// NormalizeSeverity maps raw input onto a known severity. Anything unrecognised,
// including an empty value, is treated as low.
func NormalizeSeverity(raw string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Weight is the fixed contribution of one log to a risk score: high=3, medium=2, low=1.
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// BehaviorLog is a row of the behavior_logs table.
type BehaviorLog struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  *string   `db:"school_id" json:"school_id,omitempty"`
	StudentID *string   `db:"student_id" json:"student_id"`
	ClassID   *string   `db:"class_id" json:"class_id"`
	Room      *string   `db:"room" json:"room"`
	Category  string    `db:"category" json:"category"`
	Severity  string    `db:"severity" json:"severity"`
	Summary   string    `db:"summary" json:"summary"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BehaviorLogRow is a behavior log joined with the display attributes of its
// student and class. Joined columns are nullable since both references are optional.
type BehaviorLogRow struct {
	BehaviorLog
	StudentFirstName *string `db:"student_first_name" json:"student_first_name,omitempty"`
	StudentLastName  *string `db:"student_last_name" json:"student_last_name,omitempty"`
	StudentCode      *string `db:"student_code" json:"student_code,omitempty"`
	ClassName        *string `db:"class_name" json:"class_name,omitempty"`
	ClassRoom        *string `db:"class_room" json:"class_room,omitempty"`
}

// BehaviorLogFilter narrows a log query. Zero values mean "no constraint".
type BehaviorLogFilter struct {
	SchoolID  string
	From      *time.Time
	Severity  string
	Category  string
	StudentID string
	ClassID   string
	Limit     int
	// Before resumes a newest-first scan after the given row.
	Before *LogCursor
}

// MaxLogPageSize is the largest page a single log query returns.
const MaxLogPageSize = 10000

// LogCursor is the (created_at, id) position of a row in newest-first order.
type LogCursor struct {
	CreatedAt time.Time
	ID        string
}

// Cursor returns the position of the row for resuming a scan.
func (l BehaviorLog) Cursor() *LogCursor {
	return &LogCursor{CreatedAt: l.CreatedAt, ID: l.ID}
}

// StudentDisplayName renders "First Last", falling back to the student code, then to "—".
func (r BehaviorLogRow) StudentDisplayName() string {
	parts := make([]string, 0, 2)
	if v := deref(r.StudentFirstName); v != "" {
		parts = append(parts, v)
	}
	if v := deref(r.StudentLastName); v != "" {
		parts = append(parts, v)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if v := deref(r.StudentCode); v != "" {
		return v
	}
	return Placeholder
}

// ClassDisplayName renders the class name or "—".
func (r BehaviorLogRow) ClassDisplayName() string {
	if v := deref(r.ClassName); v != "" {
		return v
	}
	return Placeholder
}

// ResolvedRoom picks the class room, then the log's own room, then UnknownRoom.
func (r BehaviorLogRow) ResolvedRoom() string {
	if v := deref(r.ClassRoom); v != "" {
		return v
	}
	if v := deref(r.Room); v != "" {
		return v
	}
	return UnknownRoom
}

const (
	// Placeholder is shown where an optional display value is missing.
	Placeholder = "—"
	// UnknownRoom groups logs with no room on either the class or the log.
	UnknownRoom = "Unknown room"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
