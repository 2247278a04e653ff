package models

import "time"

// Room is a named meeting room within a school. (school_id, lower(name)) is unique.
type Room struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	MeetingURL *string   `db:"meeting_url" json:"meeting_url"`
	CreatedBy  *string   `db:"created_by" json:"created_by"`
	InsertedAt time.Time `db:"inserted_at" json:"inserted_at"`
}

// RoomFilter narrows a room listing.
type RoomFilter struct {
	SchoolID string
	Name     string
}

// RoomUpsertResult reports how an idempotent room create was satisfied.
// Exactly one flag is true.
type RoomUpsertResult struct {
	Room     *Room
	Existed  bool
	Created  bool
	Conflict bool
}

// Meta renders the outcome flag for response metadata.
func (r RoomUpsertResult) Meta() map[string]interface{} {
	switch {
	case r.Created:
		return map[string]interface{}{"created": true}
	case r.Conflict:
		return map[string]interface{}{"conflict": true}
	default:
		return map[string]interface{}{"existed": true}
	}
}

// Message is a chat message posted into a room.
type Message struct {
	ID        string    `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
