package models

import "time"

// Host request status values. Transitions are waiting→answered or
// waiting→expired; both are terminal.
const (
	RequestWaiting  = "waiting"
	RequestAnswered = "answered"
	RequestExpired  = "expired"
)

// HostRequest records one escalation to the human host, pending a
// free-text answer. The ID doubles as the correlation token embedded in
// the outbound notification (see the reqid package).
type HostRequest struct {
	ID           string `gorm:"primaryKey;size:32"`
	ThreadID     string `gorm:"size:64;not null;index"`
	GuestMessage string `gorm:"type:text"`
	GuestName    string `gorm:"size:128"`
	Status       string `gorm:"size:16;default:waiting;index"`
	HostResponse string `gorm:"type:text"`
	RespondedAt  *time.Time
	CreatedAt    time.Time `gorm:"index"`
}
