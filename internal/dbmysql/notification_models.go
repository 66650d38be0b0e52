package dbmysql

import (
	"time"

	"ripple/internal/common"
)

// Notification rows hold the content union in its JSON envelope; decoding
// happens in the notif package. Related* columns exist for the grouping
// equivalence checks and for client deep links.
type Notification struct {
	ID               string                  `gorm:"primaryKey;size:36"`
	UserID           string                  `gorm:"not null;index;size:36"`
	Type             common.NotificationType `gorm:"not null;size:20"`
	Content          []byte                  `gorm:"type:json"`
	RelatedUserID    *string                 `gorm:"size:36"`
	RelatedPostID    *string                 `gorm:"size:36"`
	RelatedMessageID *string                 `gorm:"size:36"`
	IsRead           bool                    `gorm:"default:false;index"`
	ReadAt           *time.Time
	CreatedAt        time.Time `gorm:"index"`
}

// NotificationSettings is one row per user, defaulted lazily on first read.
type NotificationSettings struct {
	UserID         string                `gorm:"primaryKey;size:36"`
	DMEnabled      bool                  `gorm:"default:true"`
	LikeEnabled    bool                  `gorm:"default:true"`
	FollowEnabled  bool                  `gorm:"default:true"`
	ReplyEnabled   bool                  `gorm:"default:true"`
	QuoteEnabled   bool                  `gorm:"default:true"`
	RepostEnabled  bool                  `gorm:"default:true"`
	NewPostEnabled bool                  `gorm:"default:true"`
	EmailFrequency common.EmailFrequency `gorm:"size:10;default:'instant'"`
	UpdatedAt      time.Time             `gorm:"autoUpdateTime"`
}

// DefaultSettings returns the lazily created row for a user with every toggle
// on.
func DefaultSettings(userID string) *NotificationSettings {
	return &NotificationSettings{
		UserID:         userID,
		DMEnabled:      true,
		LikeEnabled:    true,
		FollowEnabled:  true,
		ReplyEnabled:   true,
		QuoteEnabled:   true,
		RepostEnabled:  true,
		NewPostEnabled: true,
		EmailFrequency: common.EmailInstant,
	}
}

// Enabled reports whether the given notification type is switched on.
func (s *NotificationSettings) Enabled(t common.NotificationType) bool {
	switch t {
	case common.NotifDM:
		return s.DMEnabled
	case common.NotifLike:
		return s.LikeEnabled
	case common.NotifFollow:
		return s.FollowEnabled
	case common.NotifReply:
		return s.ReplyEnabled
	case common.NotifQuote:
		return s.QuoteEnabled
	case common.NotifRepost:
		return s.RepostEnabled
	case common.NotifNewPost:
		return s.NewPostEnabled
	}
	return false
}
