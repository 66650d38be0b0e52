package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ripple/internal/common"
	"ripple/internal/dbmysql"
)

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *dbmysql.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) ByID(ctx context.Context, id string) (*dbmysql.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dbmysql.Message), args.Error(1)
}

func (m *MockMessageRepository) Page(ctx context.Context, conversationID string, limit, offset int, before *dbmysql.Message) ([]*dbmysql.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dbmysql.Message), args.Error(1)
}

func (m *MockMessageRepository) InsertReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, messageID, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) UnreadMessageIDs(ctx context.Context, conversationID, userID string) ([]string, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMessageRepository) InsertReceipts(ctx context.Context, messageIDs []string, userID string, at time.Time) (int64, error) {
	args := m.Called(ctx, messageIDs, userID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) SoftDelete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MockMessageRepository) Search(ctx context.Context, conversationID, term string, limit int) ([]*dbmysql.Message, error) {
	args := m.Called(ctx, conversationID, term, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dbmysql.Message), args.Error(1)
}

func newMessageTestService(t *testing.T, repo *MockMessageRepository, convRepo *MockConversationRepository) MessageService {
	t.Helper()
	convSvc := NewConversationService(convRepo, new(MockSocialService))
	return NewMessageService(repo, convSvc, nil, zap.NewNop())
}

func TestSend_PayloadValidation(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	tests := []struct {
		name  string
		input SendInput
	}{
		{"missing sender", SendInput{ConversationID: "conv-1", Type: common.MessageText, Content: "hi"}},
		{"empty text", SendInput{ConversationID: "conv-1", SenderID: "alice", Type: common.MessageText, Content: "   "}},
		{"image without ref", SendInput{ConversationID: "conv-1", SenderID: "alice", Type: common.MessageImage}},
		{"post share without id", SendInput{ConversationID: "conv-1", SenderID: "alice", Type: common.MessagePostShare}},
		{"unknown type", SendInput{ConversationID: "conv-1", SenderID: "alice", Type: "video", Content: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), tt.input)
			assert.True(t, common.IsValidation(err), "want validation error, got %v", err)
		})
	}
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSend_ParticipantGate(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	convRepo.On("ByID", mock.Anything, "conv-1").Return(existingConv(), nil)

	_, err := svc.Send(context.Background(), SendInput{
		ConversationID: "conv-1",
		SenderID:       "mallory",
		Type:           common.MessageText,
		Content:        "hi",
	})

	assert.True(t, common.IsAuthorization(err))
}

func TestSend_Success(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	convRepo.On("ByID", mock.Anything, "conv-1").Return(existingConv(), nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(m *dbmysql.Message) bool {
		return m.ConversationID == "conv-1" && m.SenderID == "alice" && m.ID != ""
	})).Return(nil)

	msg, err := svc.Send(context.Background(), SendInput{
		ConversationID: "conv-1",
		SenderID:       "alice",
		Type:           common.MessageText,
		Content:        "hello bob",
	})

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), msg.CreatedAt, time.Second)
	repo.AssertExpectations(t)
}

func TestMarkRead_SenderSelfReadIsNoOp(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	repo.On("ByID", mock.Anything, "msg-1").Return(&dbmysql.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "alice",
	}, nil)

	marked, err := svc.MarkRead(context.Background(), "msg-1", "alice")

	assert.NoError(t, err)
	assert.False(t, marked)
	repo.AssertNotCalled(t, "InsertReceipt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkRead_Idempotent(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	convRepo.On("ByID", mock.Anything, "conv-1").Return(existingConv(), nil)
	repo.On("ByID", mock.Anything, "msg-1").Return(&dbmysql.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "alice",
	}, nil)
	repo.On("InsertReceipt", mock.Anything, "msg-1", "bob", mock.Anything).Return(true, nil).Once()
	repo.On("InsertReceipt", mock.Anything, "msg-1", "bob", mock.Anything).Return(false, nil).Once()

	marked, err := svc.MarkRead(context.Background(), "msg-1", "bob")
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = svc.MarkRead(context.Background(), "msg-1", "bob")
	require.NoError(t, err)
	assert.False(t, marked, "second read must not report a new receipt")
}

func TestMarkRead_NotFound(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	repo.On("ByID", mock.Anything, "missing").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.MarkRead(context.Background(), "missing", "bob")
	assert.True(t, common.IsNotFound(err))
}

func TestMessageByID_ParticipantGated(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	convRepo.On("ByID", mock.Anything, "conv-1").Return(existingConv(), nil)
	repo.On("ByID", mock.Anything, "msg-1").Return(&dbmysql.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "alice",
	}, nil)

	msg, err := svc.ByID(context.Background(), "msg-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.SenderID)

	_, err = svc.ByID(context.Background(), "msg-1", "mallory")
	assert.True(t, common.IsAuthorization(err))

	repo.On("ByID", mock.Anything, "missing").Return(nil, gorm.ErrRecordNotFound)
	_, err = svc.ByID(context.Background(), "missing", "bob")
	assert.True(t, common.IsNotFound(err))
}

func TestMarkAllRead_ReturnsNewlyMarkedIDs(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	convRepo.On("ByID", mock.Anything, "conv-1").Return(existingConv(), nil)
	repo.On("UnreadMessageIDs", mock.Anything, "conv-1", "bob").Return([]string{"m1", "m2"}, nil).Once()
	repo.On("InsertReceipts", mock.Anything, []string{"m1", "m2"}, "bob", mock.Anything).Return(int64(2), nil)

	ids, err := svc.MarkAllRead(context.Background(), "conv-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)

	// Nothing left unread on the second call.
	repo.On("UnreadMessageIDs", mock.Anything, "conv-1", "bob").Return([]string{}, nil).Once()
	ids, err = svc.MarkAllRead(context.Background(), "conv-1", "bob")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSoftDelete_SenderOnly(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	repo.On("ByID", mock.Anything, "msg-1").Return(&dbmysql.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "alice",
	}, nil)
	repo.On("SoftDelete", mock.Anything, "msg-1").Return(nil)

	err := svc.SoftDelete(context.Background(), "msg-1", "bob")
	assert.True(t, common.IsAuthorization(err))

	err = svc.SoftDelete(context.Background(), "msg-1", "alice")
	assert.NoError(t, err)
}

func TestPage_AnchorNotFound(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	convRepo.On("ByID", mock.Anything, "conv-1").Return(existingConv(), nil)
	repo.On("ByID", mock.Anything, "missing").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Page(context.Background(), "conv-1", "alice", 50, 0, "missing")
	assert.True(t, common.IsNotFound(err))
}

func TestPage_DefaultsLimit(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	convRepo.On("ByID", mock.Anything, "conv-1").Return(existingConv(), nil)
	repo.On("Page", mock.Anything, "conv-1", 50, 0, (*dbmysql.Message)(nil)).
		Return([]*dbmysql.Message{}, nil)

	_, err := svc.Page(context.Background(), "conv-1", "alice", 0, 0, "")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSearch_RequiresTerm(t *testing.T) {
	repo := new(MockMessageRepository)
	convRepo := new(MockConversationRepository)
	svc := newMessageTestService(t, repo, convRepo)

	_, err := svc.Search(context.Background(), "conv-1", "alice", "  ", 20)
	assert.True(t, common.IsValidation(err))
}
