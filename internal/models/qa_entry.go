package models

import "time"

// QA entry sources.
const (
	SourceAutomated    = "automated"
	SourceHostApproved = "host_approved"
)

// QAEntry is one knowledge-base question/answer pair. The store rejects
// duplicate (question, answer) pairs on append.
type QAEntry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Question  string `gorm:"type:text;not null"`
	Answer    string `gorm:"type:text;not null"`
	Source    string `gorm:"size:32;default:automated"`
	CreatedAt time.Time
}
