package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ripple/internal/common"
	"ripple/internal/dbmysql"
	"ripple/internal/social"
)

// ConversationService owns the canonical two-party conversation entities.
type ConversationService interface {
	// FindOrCreate returns the active conversation for the unordered pair,
	// creating it if absent. Commutative: argument order does not matter.
	FindOrCreate(ctx context.Context, userA, userB string) (*dbmysql.Conversation, error)
	ByID(ctx context.Context, conversationID string) (*dbmysql.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	GetOtherParticipant(ctx context.Context, conversationID, userID string) (string, error)
	// Archive deactivates the conversation; messages are kept.
	Archive(ctx context.Context, conversationID, userID string) error
}

type conversationService struct {
	repo   dbmysql.ConversationRepository
	social social.Service
}

// Constructor used in DI/wire
func NewConversationService(repo dbmysql.ConversationRepository, socialSvc social.Service) ConversationService {
	return &conversationService{repo: repo, social: socialSvc}
}

// canonicalPair orders an unordered user pair so each pair maps to one row.
func canonicalPair(userA, userB string) (low, high string) {
	if strings.Compare(userA, userB) < 0 {
		return userA, userB
	}
	return userB, userA
}

func (s *conversationService) FindOrCreate(ctx context.Context, userA, userB string) (*dbmysql.Conversation, error) {
	if userA == "" || userB == "" {
		return nil, common.ValidationError("both participants are required")
	}
	if userA == userB {
		return nil, common.ConflictError("cannot open a conversation with yourself")
	}

	mutual, err := s.social.AreMutualFollowers(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if !mutual {
		return nil, common.AuthorizationError("users %s and %s are not mutual followers", userA, userB)
	}

	low, high := canonicalPair(userA, userB)

	conv, err := s.repo.FindActiveByPair(ctx, low, high)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = &dbmysql.Conversation{
		ID:              uuid.NewString(),
		ParticipantLow:  low,
		ParticipantHigh: high,
		LastMessageAt:   time.Now().UTC(),
		IsActive:        true,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		// A concurrent FindOrCreate for the same pair may have won the
		// unique index; the existing row is the answer either way.
		if existing, findErr := s.repo.FindActiveByPair(ctx, low, high); findErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return conv, nil
}

func (s *conversationService) ByID(ctx context.Context, conversationID string) (*dbmysql.Conversation, error) {
	conv, err := s.repo.ByID(ctx, conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("conversation", conversationID)
	}
	return conv, err
}

func (s *conversationService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	conv, err := s.ByID(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return conv.ParticipantLow == userID || conv.ParticipantHigh == userID, nil
}

func (s *conversationService) GetOtherParticipant(ctx context.Context, conversationID, userID string) (string, error) {
	conv, err := s.ByID(ctx, conversationID)
	if err != nil {
		return "", err
	}
	switch userID {
	case conv.ParticipantLow:
		return conv.ParticipantHigh, nil
	case conv.ParticipantHigh:
		return conv.ParticipantLow, nil
	}
	return "", common.AuthorizationError("user %s is not a participant of conversation %s", userID, conversationID)
}

func (s *conversationService) Archive(ctx context.Context, conversationID, userID string) error {
	ok, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.AuthorizationError("user %s is not a participant of conversation %s", userID, conversationID)
	}

	err = s.repo.Archive(ctx, conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFoundError("conversation", conversationID)
	}
	return err
}
