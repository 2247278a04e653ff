package models

import "time"

// School is the tenant boundary; students, classes, rooms and logs belong to one.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
