package models

import "time"

// Thread represents one ongoing guest conversation. The ID is the stable
// platform thread identifier; rows are created on first escalation and
// never deleted.
type Thread struct {
	ID         string    `gorm:"primaryKey;size:64"`
	GuestName  string    `gorm:"size:128"`
	LastSeenAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}
