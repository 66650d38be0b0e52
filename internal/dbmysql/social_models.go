package dbmysql

import (
	"time"
)

// User carries only the columns this subsystem reads. Profile CRUD and
// identity issuance live with external collaborators.
type User struct {
	UserID      string    `gorm:"primaryKey;size:36;column:user_id"`
	Handle      string    `gorm:"uniqueIndex;size:50;not null"`
	DisplayName string    `gorm:"size:100"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// Follow is boundary data from the follow graph, consumed but never mutated
// here.
type Follow struct {
	FollowerID string    `gorm:"primaryKey;size:36"`
	FolloweeID string    `gorm:"primaryKey;size:36"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Post holds the columns notification snapshots and the pin transaction
// touch; post CRUD itself is out of scope.
type Post struct {
	ID        string `gorm:"primaryKey;size:36"`
	AuthorID  string `gorm:"not null;index;size:36"`
	Content   string `gorm:"type:text"`
	IsPinned  bool   `gorm:"default:false"`
	CreatedAt time.Time
}

// Repost references a post on another user's profile. The unique
// (user_id, post_id) index is what makes duplicate reposts a conflict rather
// than an insert-then-compensate.
type Repost struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"not null;size:36;uniqueIndex:idx_user_post"`
	PostID    string `gorm:"not null;size:36;uniqueIndex:idx_user_post"`
	IsPinned  bool   `gorm:"default:false"`
	CreatedAt time.Time
}
