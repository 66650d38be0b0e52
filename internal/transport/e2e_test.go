package transport

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ripple/internal/chat"
	"ripple/internal/common"
	"ripple/internal/config"
	"ripple/internal/dbmysql"
	"ripple/internal/notif"
	"ripple/internal/presence"
	"ripple/internal/social"
)

// In-memory stores backing the end-to-end flow: real services, real
// transport, no MySQL.

type memConversationRepo struct {
	mu    sync.Mutex
	convs map[string]*dbmysql.Conversation
}

func (r *memConversationRepo) ByID(_ context.Context, id string) (*dbmysql.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.convs[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memConversationRepo) FindActiveByPair(_ context.Context, low, high string) (*dbmysql.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.ParticipantLow == low && c.ParticipantHigh == high && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memConversationRepo) Create(_ context.Context, conv *dbmysql.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *conv
	r.convs[conv.ID] = &cp
	return nil
}

func (r *memConversationRepo) Archive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.IsActive = false
	return nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []*dbmysql.Message
	receipts map[string]map[string]time.Time // messageID -> userID -> readAt
}

func (r *memMessageRepo) Create(_ context.Context, msg *dbmysql.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *memMessageRepo) ByID(_ context.Context, id string) (*dbmysql.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memMessageRepo) Page(_ context.Context, conversationID string, limit, offset int, before *dbmysql.Message) ([]*dbmysql.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dbmysql.Message
	for _, m := range r.messages {
		if m.ConversationID != conversationID || m.IsDeleted {
			continue
		}
		if before != nil && !m.CreatedAt.Before(before.CreatedAt) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessageRepo) InsertReceipt(_ context.Context, messageID, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(messageID, userID, at), nil
}

func (r *memMessageRepo) insertLocked(messageID, userID string, at time.Time) bool {
	if r.receipts[messageID] == nil {
		r.receipts[messageID] = make(map[string]time.Time)
	}
	if _, ok := r.receipts[messageID][userID]; ok {
		return false
	}
	r.receipts[messageID][userID] = at
	return true
}

func (r *memMessageRepo) UnreadMessageIDs(_ context.Context, conversationID, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, m := range r.messages {
		if m.ConversationID != conversationID || m.SenderID == userID || m.IsDeleted {
			continue
		}
		if _, read := r.receipts[m.ID][userID]; !read {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (r *memMessageRepo) InsertReceipts(_ context.Context, messageIDs []string, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range messageIDs {
		if r.insertLocked(id, userID, at) {
			n++
		}
	}
	return n, nil
}

func (r *memMessageRepo) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	ids, err := r.UnreadMessageIDs(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func (r *memMessageRepo) SoftDelete(_ context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == messageID {
			m.IsDeleted = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memMessageRepo) Search(_ context.Context, conversationID, term string, limit int) ([]*dbmysql.Message, error) {
	return nil, nil
}

type memNotificationRepo struct {
	mu   sync.Mutex
	rows []*dbmysql.Notification
}

func (r *memNotificationRepo) Create(_ context.Context, n *dbmysql.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memNotificationRepo) ByID(_ context.Context, id string) (*dbmysql.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memNotificationRepo) ByUserID(_ context.Context, userID string, limit, offset int) ([]*dbmysql.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dbmysql.Notification
	for _, n := range r.rows {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memNotificationRepo) MarkAsRead(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id && n.UserID == userID {
			if !n.IsRead {
				now := time.Now().UTC()
				n.IsRead = true
				n.ReadAt = &now
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memNotificationRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.rows {
		if n.ID == id && n.UserID == userID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memNotificationRepo) UnreadCount(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID && !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *memNotificationRepo) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type memSettingsRepo struct {
	mu   sync.Mutex
	rows map[string]*dbmysql.NotificationSettings
}

func (r *memSettingsRepo) Get(_ context.Context, userID string) (*dbmysql.NotificationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[userID]; ok {
		cp := *s
		return &cp, nil
	}
	s := dbmysql.DefaultSettings(userID)
	r.rows[userID] = s
	cp := *s
	return &cp, nil
}

func (r *memSettingsRepo) Update(_ context.Context, settings *dbmysql.NotificationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *settings
	r.rows[settings.UserID] = &cp
	return nil
}

type memSocialRepo struct {
	follows map[string]map[string]bool // follower -> followee
	users   map[string]*dbmysql.User
}

func (r *memSocialRepo) AreMutualFollowers(_ context.Context, a, b string) (bool, error) {
	return r.follows[a][b] && r.follows[b][a], nil
}

func (r *memSocialRepo) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	var out []string
	for follower, followees := range r.follows {
		if followees[userID] {
			out = append(out, follower)
		}
	}
	return out, nil
}

func (r *memSocialRepo) FollowersWithNewPostEnabled(ctx context.Context, posterID string) ([]string, error) {
	return r.FollowerIDs(ctx, posterID)
}

func (r *memSocialRepo) UserByID(_ context.Context, userID string) (*dbmysql.User, error) {
	if u, ok := r.users[userID]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSocialRepo) PostByID(_ context.Context, postID string) (*dbmysql.Post, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *memSocialRepo) CreateRepost(_ context.Context, repost *dbmysql.Repost) error {
	return nil
}

func (r *memSocialRepo) PinPost(_ context.Context, userID, postID string) error  { return nil }
func (r *memSocialRepo) PinRepost(_ context.Context, userID, repostID string) error { return nil }

// TestEndToEnd_SendReadFlow walks the full flow: mutual followers open a
// conversation, A sends "hi", B's unread count goes to 1 and B gets a dm
// notification with the preview; B joins, unread drops to 0, and A receives a
// read confirmation.
func TestEndToEnd_SendReadFlow(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	cfg := config.Load()

	convRepo := &memConversationRepo{convs: make(map[string]*dbmysql.Conversation)}
	msgRepo := &memMessageRepo{receipts: make(map[string]map[string]time.Time)}
	notifRepo := &memNotificationRepo{}
	settingsRepo := &memSettingsRepo{rows: make(map[string]*dbmysql.NotificationSettings)}
	socialRepo := &memSocialRepo{
		follows: map[string]map[string]bool{
			"alice": {"bob": true},
			"bob":   {"alice": true},
		},
		users: map[string]*dbmysql.User{
			"alice": {UserID: "alice", Handle: "alice", DisplayName: "Alice"},
			"bob":   {UserID: "bob", Handle: "bob"},
		},
	}

	socialSvc := social.NewService(socialRepo)
	conversations := chat.NewConversationService(convRepo, socialSvc)
	messages := chat.NewMessageService(msgRepo, conversations, nil, log)
	notifs := notif.NewService(cfg, notifRepo, settingsRepo, socialSvc, log)
	tr := New(cfg, presence.NewRegistry(), conversations, messages, notifs, log)

	conv, err := conversations.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	aliceConn := addClient(tr, "conn-alice")
	authenticate(t, tr, aliceConn, "alice")
	bobConn := addClient(tr, "conn-bob")
	authenticate(t, tr, bobConn, "bob")
	drain(aliceConn)

	// A sends "hi".
	tr.HandleFrame(aliceConn, frameBytes(t, EvtMessageSend, SendPayload{
		ConversationID: conv.ID,
		SenderID:       "alice",
		MessageType:    "text",
		Content:        "hi",
	}))

	unread, err := messages.UnreadCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	// B got a dm notification with the preview, pushed on the socket too.
	notifications, err := notifs.List(ctx, "bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, common.NotifDM, notifications[0].Type)
	assert.Equal(t, "hi", notifications[0].Content.Excerpt())
	assert.Equal(t, "Alice", notifications[0].Content.Actor())

	pushed := nextFrame(t, bobConn)
	require.Equal(t, EvtNotificationNew, pushed.Event)
	var np NotificationNewPayload
	require.NoError(t, json.Unmarshal(pushed.Data, &np))
	assert.Equal(t, "hi", np.MessagePreview)
	assert.Equal(t, "alice", np.SenderID)

	// B opens the conversation: unread drops to 0, A gets the confirmation.
	tr.HandleFrame(bobConn, frameBytes(t, EvtConversationJoin, ConversationPayload{
		ConversationID: conv.ID,
		UserID:         "bob",
	}))

	unread, err = messages.UnreadCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, unread)

	f := nextFrame(t, aliceConn)
	assert.Equal(t, EvtReadConfirmation, f.Event)
	var rc ReadConfirmationPayload
	require.NoError(t, json.Unmarshal(f.Data, &rc))
	assert.Equal(t, "bob", rc.UserID)

	// Joining again marks nothing and confirms nothing.
	tr.HandleFrame(bobConn, frameBytes(t, EvtConversationJoin, ConversationPayload{
		ConversationID: conv.ID,
		UserID:         "bob",
	}))
	select {
	case raw := <-aliceConn.send:
		var dup Frame
		require.NoError(t, json.Unmarshal(raw, &dup))
		assert.NotEqual(t, EvtReadConfirmation, dup.Event)
	default:
	}
}
