package dbmysql

import (
	"time"
)

// Conversation is the canonical two-party messaging context. ParticipantLow
// sorts before ParticipantHigh, so an unordered user pair maps to exactly one
// row; the unique composite index enforces it.
type Conversation struct {
	ID              string `gorm:"primaryKey;size:36"`
	ParticipantLow  string `gorm:"not null;size:36;uniqueIndex:idx_participant_pair"`
	ParticipantHigh string `gorm:"not null;size:36;uniqueIndex:idx_participant_pair"`
	LastMessageAt   time.Time
	IsActive        bool `gorm:"default:true;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
