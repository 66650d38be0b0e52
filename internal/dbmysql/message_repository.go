package dbmysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	// Create appends the message and bumps the parent conversation's
	// last_message_at in the same transaction.
	Create(ctx context.Context, msg *Message) error
	ByID(ctx context.Context, id string) (*Message, error)
	// Page returns non-deleted messages newest-first. When before is
	// non-nil, only messages created strictly before it are returned, which
	// keeps cursors stable under concurrent inserts.
	Page(ctx context.Context, conversationID string, limit, offset int, before *Message) ([]*Message, error)
	// InsertReceipt upserts a read receipt; reports whether a new row was
	// written.
	InsertReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error)
	// UnreadMessageIDs lists non-deleted messages in the conversation not
	// authored by userID that have no receipt for userID, oldest first.
	UnreadMessageIDs(ctx context.Context, conversationID, userID string) ([]string, error)
	// InsertReceipts bulk-upserts receipts and returns how many were new.
	InsertReceipts(ctx context.Context, messageIDs []string, userID string, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, conversationID, userID string) (int64, error)
	SoftDelete(ctx context.Context, messageID string) error
	Search(ctx context.Context, conversationID, term string, limit int) ([]*Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message_at": msg.CreatedAt,
				"updated_at":      time.Now(),
			}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (r *messageRepository) ByID(ctx context.Context, id string) (*Message, error) {
	var msg Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

func (r *messageRepository) Page(ctx context.Context, conversationID string, limit, offset int, before *Message) ([]*Message, error) {
	query := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC")

	if before != nil {
		query = query.Where("created_at < ?", before.CreatedAt)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var messages []*Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to page messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) InsertReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	receipt := &ReadReceipt{MessageID: messageID, UserID: userID, ReadAt: at}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(receipt)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert read receipt: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *messageRepository) UnreadMessageIDs(ctx context.Context, conversationID, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_deleted = ?", conversationID, userID, false).
		Where("id NOT IN (?)", r.db.Model(&ReadReceipt{}).Select("message_id").Where("user_id = ?", userID)).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}
	return ids, nil
}

func (r *messageRepository) InsertReceipts(ctx context.Context, messageIDs []string, userID string, at time.Time) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	receipts := make([]ReadReceipt, len(messageIDs))
	for i, id := range messageIDs {
		receipts[i] = ReadReceipt{MessageID: id, UserID: userID, ReadAt: at}
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&receipts)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert read receipts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *messageRepository) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_deleted = ?", conversationID, userID, false).
		Where("id NOT IN (?)", r.db.Model(&ReadReceipt{}).Select("message_id").Where("user_id = ?", userID)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, messageID string) error {
	result := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("id = ?", messageID).
		Update("is_deleted", true)
	if result.Error != nil {
		return fmt.Errorf("failed to soft-delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *messageRepository) Search(ctx context.Context, conversationID, term string, limit int) ([]*Message, error) {
	query := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Where("content LIKE ?", "%"+term+"%").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []*Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return messages, nil
}
