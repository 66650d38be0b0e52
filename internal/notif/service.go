package notif

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ripple/internal/common"
	"ripple/internal/config"
	"ripple/internal/dbmysql"
	"ripple/internal/metrics"
	"ripple/internal/social"
)

// Service creates notification records from domain events and serves the
// read side. Creation is always a side effect of some primary action; the
// call site swallows failures through ReportFailure instead of propagating
// them.
type Service struct {
	repo     dbmysql.NotificationRepository
	settings dbmysql.SettingsRepository
	social   social.Service
	workers  int
	preview  int
	log      *zap.Logger
}

func NewService(
	cfg *config.Config,
	repo dbmysql.NotificationRepository,
	settingsRepo dbmysql.SettingsRepository,
	socialSvc social.Service,
	log *zap.Logger,
) *Service {
	workers := cfg.Notification.Workers
	if workers <= 0 {
		workers = 1
	}
	preview := cfg.Notification.PreviewLength
	if preview <= 0 {
		preview = common.PreviewLength
	}
	return &Service{
		repo:     repo,
		settings: settingsRepo,
		social:   socialSvc,
		workers:  workers,
		preview:  preview,
		log:      log,
	}
}

// ReportFailure is the observability hook for swallowed notification errors:
// the primary action has already succeeded, so the failure is logged and
// counted, never returned upstream.
func (s *Service) ReportFailure(t common.NotificationType, err error) {
	if err == nil {
		return
	}
	metrics.NotificationFailures.WithLabelValues(t.String()).Inc()
	s.log.Warn("notification creation failed",
		zap.String("type", t.String()), zap.Error(err))
}

func (s *Service) enabled(ctx context.Context, userID string, t common.NotificationType) (bool, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return settings.Enabled(t), nil
}

func (s *Service) create(
	ctx context.Context,
	userID string,
	content common.Content,
	relatedUserID, relatedPostID, relatedMessageID *string,
) (*dbmysql.Notification, error) {
	raw, err := common.MarshalContent(content)
	if err != nil {
		return nil, err
	}

	row := &dbmysql.Notification{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             content.Type(),
		Content:          raw,
		RelatedUserID:    relatedUserID,
		RelatedPostID:    relatedPostID,
		RelatedMessageID: relatedMessageID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// DM notifies the recipient of a direct message. DMs always fire: sender and
// recipient differ by construction, and the per-type toggle only affects
// email digests, not in-app delivery.
func (s *Service) DM(ctx context.Context, recipientID, senderID, preview, conversationID, messageID string) (*dbmysql.Notification, error) {
	senderName, err := s.social.DisplayName(ctx, senderID)
	if err != nil {
		return nil, err
	}

	content := &common.DMContent{
		SenderName:     senderName,
		Preview:        common.Truncate(preview, s.preview),
		ConversationID: conversationID,
	}
	return s.create(ctx, recipientID, content, &senderID, nil, &messageID)
}

// Like notifies the post owner of a like; suppressed for self-likes and when
// the owner's settings disable likes.
func (s *Service) Like(ctx context.Context, ownerID, actorID, postID string) (*dbmysql.Notification, error) {
	if ownerID == actorID {
		return nil, nil
	}
	if ok, err := s.enabled(ctx, ownerID, common.NotifLike); err != nil || !ok {
		return nil, err
	}

	actorName, excerpt, err := s.snapshot(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	content := &common.LikeContent{ActorName: actorName, PostExcerpt: excerpt}
	return s.create(ctx, ownerID, content, &actorID, &postID, nil)
}

// Reply notifies the post owner of a reply; same suppression rules as Like.
func (s *Service) Reply(ctx context.Context, ownerID, actorID, postID, replyText string) (*dbmysql.Notification, error) {
	if ownerID == actorID {
		return nil, nil
	}
	if ok, err := s.enabled(ctx, ownerID, common.NotifReply); err != nil || !ok {
		return nil, err
	}

	actorName, excerpt, err := s.snapshot(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	content := &common.ReplyContent{
		ActorName:    actorName,
		PostExcerpt:  excerpt,
		ReplyExcerpt: common.Truncate(replyText, s.preview),
	}
	return s.create(ctx, ownerID, content, &actorID, &postID, nil)
}

// Quote notifies the post owner their post was quoted; same suppression rules
// as Like.
func (s *Service) Quote(ctx context.Context, ownerID, actorID, postID, quoteText string) (*dbmysql.Notification, error) {
	if ownerID == actorID {
		return nil, nil
	}
	if ok, err := s.enabled(ctx, ownerID, common.NotifQuote); err != nil || !ok {
		return nil, err
	}

	actorName, excerpt, err := s.snapshot(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	content := &common.QuoteContent{
		ActorName:    actorName,
		PostExcerpt:  excerpt,
		QuoteExcerpt: common.Truncate(quoteText, s.preview),
	}
	return s.create(ctx, ownerID, content, &actorID, &postID, nil)
}

// Repost notifies the post owner of a repost; same suppression rules as Like.
func (s *Service) Repost(ctx context.Context, ownerID, actorID, postID string) (*dbmysql.Notification, error) {
	if ownerID == actorID {
		return nil, nil
	}
	if ok, err := s.enabled(ctx, ownerID, common.NotifRepost); err != nil || !ok {
		return nil, err
	}

	actorName, excerpt, err := s.snapshot(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	content := &common.RepostContent{ActorName: actorName, PostExcerpt: excerpt}
	return s.create(ctx, ownerID, content, &actorID, &postID, nil)
}

// Follow notifies a user of a new follower, gated by settings only;
// follower != followed is enforced upstream.
func (s *Service) Follow(ctx context.Context, followedID, followerID string) (*dbmysql.Notification, error) {
	if ok, err := s.enabled(ctx, followedID, common.NotifFollow); err != nil || !ok {
		return nil, err
	}

	followerName, err := s.social.DisplayName(ctx, followerID)
	if err != nil {
		return nil, err
	}
	content := &common.FollowContent{ActorName: followerName}
	return s.create(ctx, followedID, content, &followerID, nil, nil)
}

// FanoutResult is the outcome of one follower's notification write. Failures
// are isolated: one follower failing never cancels the siblings.
type FanoutResult struct {
	FollowerID   string
	Notification *dbmysql.Notification
	Err          error
}

// NewPostFanout creates one new_post notification per follower that has the
// toggle enabled. Writes run on a bounded worker pool with no shared locks;
// partial failure is visible in the result list and the fan-out counters.
func (s *Service) NewPostFanout(ctx context.Context, posterID, postID string) ([]FanoutResult, error) {
	followers, err := s.social.FollowersWithNewPostEnabled(ctx, posterID)
	if err != nil {
		return nil, err
	}
	if len(followers) == 0 {
		return nil, nil
	}

	// Snapshot once; every follower gets the same content.
	authorName, excerpt, err := s.snapshot(ctx, posterID, postID)
	if err != nil {
		return nil, err
	}
	content := &common.NewPostContent{AuthorName: authorName, PostExcerpt: excerpt}

	var (
		wg      sync.WaitGroup
		results = make([]FanoutResult, len(followers))
		sem     = make(chan struct{}, s.workers)
	)
	for i, followerID := range followers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, followerID string) {
			defer wg.Done()
			defer func() { <-sem }()

			row, err := s.create(ctx, followerID, content, &posterID, &postID, nil)
			results[i] = FanoutResult{FollowerID: followerID, Notification: row, Err: err}
			if err != nil {
				metrics.FanoutFailed.Inc()
				s.log.Warn("fan-out write failed",
					zap.String("follower_id", followerID),
					zap.String("post_id", postID),
					zap.Error(err))
				return
			}
			metrics.FanoutDelivered.Inc()
		}(i, followerID)
	}
	wg.Wait()

	return results, nil
}

// snapshot resolves the actor display name and post excerpt captured into
// notification content at creation time.
func (s *Service) snapshot(ctx context.Context, actorID, postID string) (actorName, excerpt string, err error) {
	actorName, err = s.social.DisplayName(ctx, actorID)
	if err != nil {
		return "", "", err
	}
	post, err := s.social.Post(ctx, postID)
	if err != nil {
		return "", "", err
	}
	return actorName, common.Truncate(post.Content, s.preview), nil
}

// List returns the user's notifications newest-first, decoded.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Notification, error) {
	rows, err := s.repo.ByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return decodeAll(rows)
}

// ListGrouped returns the user's notifications with the display grouping
// applied.
func (s *Service) ListGrouped(ctx context.Context, userID string, limit, offset int) ([]DisplayItem, error) {
	notifications, err := s.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return GroupNotifications(notifications), nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	err := s.repo.MarkAsRead(ctx, notificationID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFoundError("notification", notificationID)
	}
	return err
}

func (s *Service) Delete(ctx context.Context, notificationID, userID string) error {
	err := s.repo.Delete(ctx, notificationID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFoundError("notification", notificationID)
	}
	return err
}

// Sweep removes notifications older than the retention window.
func (s *Service) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
}

func (s *Service) Settings(ctx context.Context, userID string) (*dbmysql.NotificationSettings, error) {
	return s.settings.Get(ctx, userID)
}

func (s *Service) UpdateSettings(ctx context.Context, settings *dbmysql.NotificationSettings) error {
	if settings.UserID == "" {
		return common.ValidationError("user id is required")
	}
	if !settings.EmailFrequency.IsValid() {
		return common.ValidationError("invalid email frequency %q", settings.EmailFrequency)
	}
	return s.settings.Update(ctx, settings)
}
