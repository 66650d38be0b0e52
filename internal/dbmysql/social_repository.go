package dbmysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type SocialRepository interface {
	AreMutualFollowers(ctx context.Context, userA, userB string) (bool, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	// FollowersWithNewPostEnabled returns followers of posterID whose
	// settings have the new-post toggle on. Followers without a settings row
	// count as enabled, matching the lazy default.
	FollowersWithNewPostEnabled(ctx context.Context, posterID string) ([]string, error)
	UserByID(ctx context.Context, userID string) (*User, error)
	PostByID(ctx context.Context, postID string) (*Post, error)
	CreateRepost(ctx context.Context, repost *Repost) error
	// PinPost and PinRepost enforce "at most one pinned item per user"
	// across both tables in one transaction.
	PinPost(ctx context.Context, userID, postID string) error
	PinRepost(ctx context.Context, userID, repostID string) error
}

type socialRepository struct {
	db *gorm.DB
}

func NewSocialRepository(db *gorm.DB) SocialRepository {
	return &socialRepository{db: db}
}

func (r *socialRepository) AreMutualFollowers(ctx context.Context, userA, userB string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Follow{}).
		Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check mutual follow: %w", err)
	}
	return count == 2, nil
}

func (r *socialRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&Follow{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return ids, nil
}

func (r *socialRepository) FollowersWithNewPostEnabled(ctx context.Context, posterID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&Follow{}).
		Joins("LEFT JOIN notification_settings ON notification_settings.user_id = follows.follower_id").
		Where("follows.followee_id = ?", posterID).
		Where("notification_settings.user_id IS NULL OR notification_settings.new_post_enabled = ?", true).
		Pluck("follows.follower_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled followers: %w", err)
	}
	return ids, nil
}

func (r *socialRepository) UserByID(ctx context.Context, userID string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *socialRepository) PostByID(ctx context.Context, postID string) (*Post, error) {
	var post Post
	err := r.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// CreateRepost relies on the unique (user_id, post_id) index: a duplicate
// repost surfaces as a constraint violation instead of inserting a row that
// has to be compensated away afterwards.
func (r *socialRepository) CreateRepost(ctx context.Context, repost *Repost) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Repost{}).
			Where("user_id = ? AND post_id = ?", repost.UserID, repost.PostID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check existing repost: %w", err)
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}
		if err := tx.Create(repost).Error; err != nil {
			return fmt.Errorf("failed to create repost: %w", err)
		}
		return nil
	})
}

func (r *socialRepository) PinPost(ctx context.Context, userID, postID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := unpinAll(tx, userID); err != nil {
			return err
		}
		result := tx.Model(&Post{}).
			Where("id = ? AND author_id = ?", postID, userID).
			Update("is_pinned", true)
		if result.Error != nil {
			return fmt.Errorf("failed to pin post: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *socialRepository) PinRepost(ctx context.Context, userID, repostID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := unpinAll(tx, userID); err != nil {
			return err
		}
		result := tx.Model(&Repost{}).
			Where("id = ? AND user_id = ?", repostID, userID).
			Update("is_pinned", true)
		if result.Error != nil {
			return fmt.Errorf("failed to pin repost: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// unpinAll clears any pin the user holds in either table. Runs inside the
// pin transaction so a failure rolls the whole operation back.
func unpinAll(tx *gorm.DB, userID string) error {
	if err := tx.Model(&Post{}).
		Where("author_id = ? AND is_pinned = ?", userID, true).
		Update("is_pinned", false).Error; err != nil {
		return fmt.Errorf("failed to unpin posts: %w", err)
	}
	if err := tx.Model(&Repost{}).
		Where("user_id = ? AND is_pinned = ?", userID, true).
		Update("is_pinned", false).Error; err != nil {
		return fmt.Errorf("failed to unpin reposts: %w", err)
	}
	return nil
}
