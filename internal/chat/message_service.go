package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ripple/internal/cache"
	"ripple/internal/common"
	"ripple/internal/dbmysql"
)

// SendInput is the payload of a message append. Exactly one of Content,
// ImageRef, SharedPostID is meaningful for the given Type.
type SendInput struct {
	ConversationID string
	SenderID       string
	Type           common.MessageType
	Content        string
	ImageRef       *string
	SharedPostID   *string
}

// MessageService owns the append-only message log and its read receipts.
type MessageService interface {
	Send(ctx context.Context, in SendInput) (*dbmysql.Message, error)
	// ByID returns the message, participant gated.
	ByID(ctx context.Context, messageID, userID string) (*dbmysql.Message, error)
	// Page returns messages newest-first. beforeMessageID, when non-empty,
	// anchors the page strictly before that message's timestamp so cursors
	// stay stable while new messages arrive.
	Page(ctx context.Context, conversationID, userID string, limit, offset int, beforeMessageID string) ([]*dbmysql.Message, error)
	// MarkRead is idempotent; reports whether a new receipt was written. A
	// sender marking their own message is a silent no-op.
	MarkRead(ctx context.Context, messageID, userID string) (bool, error)
	// MarkAllRead receipts every unread message from the other participant
	// and returns the newly marked message IDs (empty on repeat calls).
	MarkAllRead(ctx context.Context, conversationID, userID string) ([]string, error)
	UnreadCount(ctx context.Context, conversationID, userID string) (int64, error)
	// SoftDelete hides the message; sender-only.
	SoftDelete(ctx context.Context, messageID, userID string) error
	Search(ctx context.Context, conversationID, userID, term string, limit int) ([]*dbmysql.Message, error)
}

type messageService struct {
	repo          dbmysql.MessageRepository
	conversations ConversationService
	cache         *cache.MessageCache
	log           *zap.Logger
}

// Constructor used in DI/wire. cache may be nil.
func NewMessageService(
	repo dbmysql.MessageRepository,
	conversations ConversationService,
	msgCache *cache.MessageCache,
	log *zap.Logger,
) MessageService {
	return &messageService{
		repo:          repo,
		conversations: conversations,
		cache:         msgCache,
		log:           log,
	}
}

func validatePayload(in SendInput) error {
	switch in.Type {
	case common.MessageText:
		if strings.TrimSpace(in.Content) == "" {
			return common.ValidationError("text message requires non-empty content")
		}
	case common.MessageImage:
		if in.ImageRef == nil || *in.ImageRef == "" {
			return common.ValidationError("image message requires an image reference")
		}
	case common.MessagePostShare:
		if in.SharedPostID == nil || *in.SharedPostID == "" {
			return common.ValidationError("post share message requires a shared post id")
		}
	default:
		return common.ValidationError("unknown message type %q", in.Type)
	}
	return nil
}

func (s *messageService) Send(ctx context.Context, in SendInput) (*dbmysql.Message, error) {
	if in.SenderID == "" {
		return nil, common.ValidationError("sender id is required")
	}
	if err := validatePayload(in); err != nil {
		return nil, err
	}

	ok, err := s.conversations.IsParticipant(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.AuthorizationError("user %s is not a participant of conversation %s", in.SenderID, in.ConversationID)
	}

	msg := &dbmysql.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Type:           in.Type,
		Content:        in.Content,
		ImageRef:       in.ImageRef,
		SharedPostID:   in.SharedPostID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.cache.Insert(ctx, msg); err != nil {
		s.log.Warn("message cache insert failed",
			zap.String("conversation_id", msg.ConversationID), zap.Error(err))
	}
	return msg, nil
}

func (s *messageService) Page(ctx context.Context, conversationID, userID string, limit, offset int, beforeMessageID string) ([]*dbmysql.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	var before *dbmysql.Message
	if beforeMessageID != "" {
		anchor, err := s.repo.ByID(ctx, beforeMessageID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFoundError("message", beforeMessageID)
		}
		if err != nil {
			return nil, err
		}
		before = anchor
	}

	// The hot path (first page, no anchor) can be served from the cache.
	if offset == 0 && before == nil {
		cached, err := s.cache.ListNewest(ctx, conversationID, limit)
		if err != nil {
			s.log.Warn("message cache read failed",
				zap.String("conversation_id", conversationID), zap.Error(err))
		} else if len(cached) >= limit {
			return cached[:limit], nil
		}
	}

	messages, err := s.repo.Page(ctx, conversationID, limit, offset, before)
	if err != nil {
		return nil, err
	}

	if offset == 0 && before == nil {
		if err := s.cache.Prime(ctx, conversationID, messages); err != nil {
			s.log.Warn("message cache prime failed",
				zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
	return messages, nil
}

func (s *messageService) ByID(ctx context.Context, messageID, userID string) (*dbmysql.Message, error) {
	msg, err := s.repo.ByID(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("message", messageID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *messageService) MarkRead(ctx context.Context, messageID, userID string) (bool, error) {
	msg, err := s.repo.ByID(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, common.NotFoundError("message", messageID)
	}
	if err != nil {
		return false, err
	}

	// You cannot "read" your own message; allowing it would corrupt unread
	// counts.
	if msg.SenderID == userID {
		return false, nil
	}

	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return false, err
	}

	return s.repo.InsertReceipt(ctx, messageID, userID, time.Now().UTC())
}

func (s *messageService) MarkAllRead(ctx context.Context, conversationID, userID string) ([]string, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	ids, err := s.repo.UnreadMessageIDs(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := s.repo.InsertReceipts(ctx, ids, userID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *messageService) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	return s.repo.UnreadCount(ctx, conversationID, userID)
}

func (s *messageService) SoftDelete(ctx context.Context, messageID, userID string) error {
	msg, err := s.repo.ByID(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFoundError("message", messageID)
	}
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return common.AuthorizationError("only the sender can delete message %s", messageID)
	}

	if err := s.repo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	if err := s.cache.Invalidate(ctx, msg.ConversationID); err != nil {
		s.log.Warn("message cache invalidate failed",
			zap.String("conversation_id", msg.ConversationID), zap.Error(err))
	}
	return nil
}

func (s *messageService) Search(ctx context.Context, conversationID, userID, term string, limit int) ([]*dbmysql.Message, error) {
	if strings.TrimSpace(term) == "" {
		return nil, common.ValidationError("search term is required")
	}
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.Search(ctx, conversationID, term, limit)
}

func (s *messageService) requireParticipant(ctx context.Context, conversationID, userID string) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.AuthorizationError("user %s is not a participant of conversation %s", userID, conversationID)
	}
	return nil
}
