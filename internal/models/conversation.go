package models

import "time"

// Conversation roles.
const (
	RoleGuest     = "guest"
	RoleAssistant = "assistant"
)

// ConversationTurn is one turn of a thread's transcript. Turns are ordered
// by Sequence within a thread; the worker owns the transcript while it runs
// and hands it back through the store every cycle.
type ConversationTurn struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ThreadID  string `gorm:"size:64;not null;index"`
	Sequence  int    `gorm:"not null"`
	Role      string `gorm:"size:16;not null"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}
