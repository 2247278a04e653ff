package models

import "time"

// Class represents a teaching group. Room is the default location used when
// grouping behavior logs by room.
type Class struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	Room      *string   `db:"room" json:"room"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	SchoolID string
	Limit    int
}
