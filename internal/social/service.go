// Package social is the boundary to the follow graph and post data this
// subsystem consumes. It never mutates follows or posts except for the pin
// flags and repost rows it owns.
package social

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ripple/internal/common"
	"ripple/internal/dbmysql"
)

type Service interface {
	AreMutualFollowers(ctx context.Context, userA, userB string) (bool, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	FollowersWithNewPostEnabled(ctx context.Context, posterID string) ([]string, error)
	// DisplayName resolves the identity shown in notification snapshots,
	// falling back to the handle.
	DisplayName(ctx context.Context, userID string) (string, error)
	Post(ctx context.Context, postID string) (*dbmysql.Post, error)
	Repost(ctx context.Context, userID, postID string) (*dbmysql.Repost, error)
	PinPost(ctx context.Context, userID, postID string) error
	PinRepost(ctx context.Context, userID, repostID string) error
}

type service struct {
	repo dbmysql.SocialRepository
}

func NewService(repo dbmysql.SocialRepository) Service {
	return &service{repo: repo}
}

func (s *service) AreMutualFollowers(ctx context.Context, userA, userB string) (bool, error) {
	return s.repo.AreMutualFollowers(ctx, userA, userB)
}

func (s *service) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return s.repo.FollowerIDs(ctx, userID)
}

func (s *service) FollowersWithNewPostEnabled(ctx context.Context, posterID string) ([]string, error) {
	return s.repo.FollowersWithNewPostEnabled(ctx, posterID)
}

func (s *service) DisplayName(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.UserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", common.NotFoundError("user", userID)
	}
	if err != nil {
		return "", err
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.Handle, nil
}

func (s *service) Post(ctx context.Context, postID string) (*dbmysql.Post, error) {
	post, err := s.repo.PostByID(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("post", postID)
	}
	return post, err
}

func (s *service) Repost(ctx context.Context, userID, postID string) (*dbmysql.Repost, error) {
	if _, err := s.Post(ctx, postID); err != nil {
		return nil, err
	}

	repost := &dbmysql.Repost{
		ID:        uuid.NewString(),
		UserID:    userID,
		PostID:    postID,
		CreatedAt: time.Now().UTC(),
	}
	err := s.repo.CreateRepost(ctx, repost)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, common.ConflictError("post %s already reposted by %s", postID, userID)
	}
	if err != nil {
		return nil, err
	}
	return repost, nil
}

func (s *service) PinPost(ctx context.Context, userID, postID string) error {
	err := s.repo.PinPost(ctx, userID, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.AuthorizationError("post %s is not pinnable by %s", postID, userID)
	}
	return err
}

func (s *service) PinRepost(ctx context.Context, userID, repostID string) error {
	err := s.repo.PinRepost(ctx, userID, repostID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.AuthorizationError("repost %s is not pinnable by %s", repostID, userID)
	}
	return err
}
