package models

import "time"

// ChatLogEntry is one line of the append-only chat log.
type ChatLogEntry struct {
	Type      string    `bson:"type" json:"type"`
	Role      string    `bson:"role,omitempty" json:"role,omitempty"` // user|assistant
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}
