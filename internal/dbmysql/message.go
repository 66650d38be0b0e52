package dbmysql

import (
	"time"

	"ripple/internal/common"
)

// Message is an append-only entry in a conversation's log. Exactly one of
// Content, ImageRef, SharedPostID is authoritative depending on Type; the
// service layer validates that before a row is created. Rows are never
// mutated except for the soft-delete flag.
type Message struct {
	ID             string             `gorm:"primaryKey;size:36"`
	ConversationID string             `gorm:"not null;index;size:36"`
	SenderID       string             `gorm:"not null;index;size:36"`
	Type           common.MessageType `gorm:"not null;size:20"`
	Content        string             `gorm:"type:text"`
	ImageRef       *string            `gorm:"size:512"`
	SharedPostID   *string            `gorm:"size:36"`
	IsDeleted      bool               `gorm:"default:false"`
	CreatedAt      time.Time          `gorm:"index"`
}

// ReadReceipt records that UserID has seen MessageID. The composite primary
// key makes duplicate inserts conflict, which the repository resolves as a
// no-op.
type ReadReceipt struct {
	MessageID string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"primaryKey;size:36"`
	ReadAt    time.Time `gorm:"not null"`
}
