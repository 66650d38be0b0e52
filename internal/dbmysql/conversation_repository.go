package dbmysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type ConversationRepository interface {
	ByID(ctx context.Context, id string) (*Conversation, error)
	FindActiveByPair(ctx context.Context, low, high string) (*Conversation, error)
	Create(ctx context.Context, conv *Conversation) error
	Archive(ctx context.Context, id string) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) ByID(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) FindActiveByPair(ctx context.Context, low, high string) (*Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).
		Where("participant_low = ? AND participant_high = ? AND is_active = ?", low, high, true).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up conversation pair: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) Create(ctx context.Context, conv *Conversation) error {
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) Archive(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to archive conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
