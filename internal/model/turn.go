package model

import "time"

// Role identifies the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn represents one message in a conversation
type Turn struct {
	Role      Role      `json:"role" db:"role" bson:"role"`
	Text      string    `json:"text" db:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at" bson:"created_at,omitempty"`
}

// History is an ordered sequence of turns, oldest first
type History []Turn
