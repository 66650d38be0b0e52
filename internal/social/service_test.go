package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ripple/internal/common"
	"ripple/internal/dbmysql"
)

type MockSocialRepository struct {
	mock.Mock
}

func (m *MockSocialRepository) AreMutualFollowers(ctx context.Context, userA, userB string) (bool, error) {
	args := m.Called(ctx, userA, userB)
	return args.Bool(0), args.Error(1)
}

func (m *MockSocialRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSocialRepository) FollowersWithNewPostEnabled(ctx context.Context, posterID string) ([]string, error) {
	args := m.Called(ctx, posterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSocialRepository) UserByID(ctx context.Context, userID string) (*dbmysql.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dbmysql.User), args.Error(1)
}

func (m *MockSocialRepository) PostByID(ctx context.Context, postID string) (*dbmysql.Post, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dbmysql.Post), args.Error(1)
}

func (m *MockSocialRepository) CreateRepost(ctx context.Context, repost *dbmysql.Repost) error {
	args := m.Called(ctx, repost)
	return args.Error(0)
}

func (m *MockSocialRepository) PinPost(ctx context.Context, userID, postID string) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

func (m *MockSocialRepository) PinRepost(ctx context.Context, userID, repostID string) error {
	args := m.Called(ctx, userID, repostID)
	return args.Error(0)
}

func TestDisplayName_FallsBackToHandle(t *testing.T) {
	repo := new(MockSocialRepository)
	svc := NewService(repo)

	repo.On("UserByID", mock.Anything, "u1").Return(&dbmysql.User{UserID: "u1", Handle: "alice", DisplayName: "Alice A."}, nil)
	repo.On("UserByID", mock.Anything, "u2").Return(&dbmysql.User{UserID: "u2", Handle: "bob"}, nil)
	repo.On("UserByID", mock.Anything, "missing").Return(nil, gorm.ErrRecordNotFound)

	name, err := svc.DisplayName(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", name)

	name, err = svc.DisplayName(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	_, err = svc.DisplayName(context.Background(), "missing")
	assert.True(t, common.IsNotFound(err))
}

func TestRepost_DuplicateIsConflict(t *testing.T) {
	repo := new(MockSocialRepository)
	svc := NewService(repo)

	repo.On("PostByID", mock.Anything, "post-1").Return(&dbmysql.Post{ID: "post-1", AuthorID: "bob"}, nil)
	repo.On("CreateRepost", mock.Anything, mock.Anything).Return(gorm.ErrDuplicatedKey)

	_, err := svc.Repost(context.Background(), "alice", "post-1")

	assert.True(t, common.IsConflict(err))
}

func TestRepost_RequiresExistingPost(t *testing.T) {
	repo := new(MockSocialRepository)
	svc := NewService(repo)

	repo.On("PostByID", mock.Anything, "ghost").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Repost(context.Background(), "alice", "ghost")

	assert.True(t, common.IsNotFound(err))
	repo.AssertNotCalled(t, "CreateRepost", mock.Anything, mock.Anything)
}

func TestRepost_Success(t *testing.T) {
	repo := new(MockSocialRepository)
	svc := NewService(repo)

	repo.On("PostByID", mock.Anything, "post-1").Return(&dbmysql.Post{ID: "post-1", AuthorID: "bob"}, nil)
	repo.On("CreateRepost", mock.Anything, mock.MatchedBy(func(r *dbmysql.Repost) bool {
		return r.UserID == "alice" && r.PostID == "post-1" && r.ID != ""
	})).Return(nil)

	repost, err := svc.Repost(context.Background(), "alice", "post-1")

	require.NoError(t, err)
	assert.NotEmpty(t, repost.ID)
}

func TestPinPost_NotOwnedMapsToAuthorization(t *testing.T) {
	repo := new(MockSocialRepository)
	svc := NewService(repo)

	repo.On("PinPost", mock.Anything, "alice", "post-1").Return(gorm.ErrRecordNotFound)

	err := svc.PinPost(context.Background(), "alice", "post-1")

	assert.True(t, common.IsAuthorization(err))
}
